// Package jobs tareas en segundo plano (asynq) del libro de movimientos.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault cola por defecto de las tareas.
	QueueDefault = "default"
	// TaskReconcileStock concilia stock contra el libro de movimientos.
	TaskReconcileStock = "inventory:reconcile"
)

// ReconcilePayload parámetros de la conciliación. Trigger indica el origen (cron, manual).
type ReconcilePayload struct {
	Trigger string `json:"trigger"`
}

// NewReconcileTask construye la tarea de conciliación.
func NewReconcileTask(trigger string) (*asynq.Task, error) {
	data, err := json.Marshal(ReconcilePayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileStock, data, asynq.Queue(QueueDefault)), nil
}
