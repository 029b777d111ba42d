// Package status сопоставляет статусам записей их представление в интерфейсе.
package status

import "github.com/mmeshcher/emind-bff/internal/model"

// Presentation описывает отображение статуса записи.
type Presentation struct {
	Status      model.AppointmentStatus `json:"status"`
	Label       string                  `json:"label"`
	Color       string                  `json:"color"`
	Icon        string                  `json:"icon"`
	Description string                  `json:"description"`
}

// Default используется для статусов вне закрытого набора.
var Default = Presentation{
	Label:       "Estado desconocido",
	Color:       "bg-gray-100 text-gray-800",
	Icon:        "help-circle",
	Description: "El estado de esta cita no se pudo determinar.",
}

var table = map[model.AppointmentStatus]Presentation{
	model.StatusPendingPayment: {
		Label:       "Pendiente de pago",
		Color:       "bg-yellow-100 text-yellow-800",
		Icon:        "clock",
		Description: "La cita está reservada y espera el pago.",
	},
	model.StatusPaymentUploaded: {
		Label:       "Pago subido",
		Color:       "bg-blue-100 text-blue-800",
		Icon:        "upload",
		Description: "El comprobante de pago fue enviado y espera verificación.",
	},
	model.StatusPaymentVerified: {
		Label:       "Pago verificado",
		Color:       "bg-indigo-100 text-indigo-800",
		Icon:        "shield-check",
		Description: "El pago fue verificado; falta la confirmación de la cita.",
	},
	model.StatusConfirmed: {
		Label:       "Confirmada",
		Color:       "bg-green-100 text-green-800",
		Icon:        "calendar-check",
		Description: "La cita está confirmada.",
	},
	model.StatusCompleted: {
		Label:       "Completada",
		Color:       "bg-emerald-100 text-emerald-800",
		Icon:        "check-circle",
		Description: "La sesión se realizó.",
	},
	model.StatusCancelled: {
		Label:       "Cancelada",
		Color:       "bg-red-100 text-red-800",
		Icon:        "x-circle",
		Description: "La cita fue cancelada.",
	},
	model.StatusNoShow: {
		Label:       "No asistió",
		Color:       "bg-orange-100 text-orange-800",
		Icon:        "user-x",
		Description: "El cliente no se presentó a la sesión.",
	},
}

// For возвращает представление статуса. Для неизвестного статуса возвращается Default и false.
func For(s model.AppointmentStatus) (Presentation, bool) {
	p, ok := table[s]
	if !ok {
		p = Default
	}
	p.Status = s
	return p, ok
}

// All возвращает представления всех статусов в порядке жизненного цикла записи.
func All() []Presentation {
	res := make([]Presentation, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		p, _ := For(s)
		res = append(res, p)
	}
	return res
}
