package queue

import (
	"github.com/hibiken/asynq"
)

// HandlersRegistry binds this service's task types to their workers.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

// RegisterAffectAnalyze installs the worker that scores recent user
// messages and publishes the affect summary.
func (r *HandlersRegistry) RegisterAffectAnalyze(handler asynq.Handler) {
	r.mux.Handle(TypeAffectAnalyze, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
