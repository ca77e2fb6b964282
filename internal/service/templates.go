package service

import (
	"fmt"
	"strings"
	"time"
)

const messageSignature = "_FNET - Internet de Alta Velocidad_"

const dateLayout = "02/01/2006"

// ReminderMessage texto del recordatorio de pago
func ReminderMessage(customerName, periodLabel string, amount float64, dueDate time.Time) string {
	return fmt.Sprintf(
		"Hola %s 👋\n\n"+
			"Le recordamos que su pago del servicio de internet correspondiente a *%s* "+
			"por *S/ %.2f* está pendiente.\n\n"+
			"📅 Fecha límite de pago: *%s*\n\n"+
			"Evite la suspensión del servicio realizando su pago a tiempo.\n\n"+
			"Gracias por preferirnos. 🌐\n"+
			messageSignature,
		customerName, CleanPeriodLabel(periodLabel), amount, dueDate.Format(dateLayout))
}

// UltimatumMessage texto del aviso final antes del corte
func UltimatumMessage(customerName, periodLabel string, amount float64, cutDate time.Time) string {
	return fmt.Sprintf(
		"⚠️ *AVISO IMPORTANTE* ⚠️\n\n"+
			"Estimado/a %s,\n\n"+
			"Su servicio de internet será *SUSPENDIDO* el día *%s* "+
			"por falta de pago del periodo *%s*.\n\n"+
			"💰 Monto pendiente: *S/ %.2f*\n\n"+
			"Para evitar la suspensión, realice su pago antes de la fecha indicada.\n\n"+
			"Si ya realizó el pago, por favor ignore este mensaje.\n\n"+
			messageSignature,
		customerName, cutDate.Format(dateLayout), CleanPeriodLabel(periodLabel), amount)
}

// SuspensionMessage texto de confirmación del corte
func SuspensionMessage(customerName, periodLabel string, amount float64) string {
	return fmt.Sprintf(
		"🔴 *SERVICIO SUSPENDIDO*\n\n"+
			"Estimado/a %s,\n\n"+
			"Lamentamos informarle que su servicio de internet ha sido *suspendido* "+
			"por falta de pago del periodo *%s*.\n\n"+
			"💰 Deuda pendiente: *S/ %.2f*\n\n"+
			"Para reconectar su servicio, realice el pago y comuníquese con nosotros.\n\n"+
			messageSignature,
		customerName, CleanPeriodLabel(periodLabel), amount)
}

// ReconnectionMessage texto del aviso de reconexión
func ReconnectionMessage(customerName string) string {
	return fmt.Sprintf(
		"🟢 *SERVICIO RECONECTADO*\n\n"+
			"Estimado/a %s,\n\n"+
			"¡Su servicio de internet ha sido *reconectado* exitosamente!\n\n"+
			"Gracias por regularizar su pago. 🙏\n\n"+
			messageSignature,
		customerName)
}

// CleanPeriodLabel normaliza una etiqueta de período para mostrarla
func CleanPeriodLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "Mes desconocido"
	}
	return label
}
