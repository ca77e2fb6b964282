package service

import "time"

// Clock devuelve la hora actual. Inyectable en tests para fijar el tiempo.
type Clock func() time.Time

// SystemClock es el reloj real del sistema
func SystemClock() time.Time {
	return time.Now()
}
