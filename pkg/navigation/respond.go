package navigation

import (
	"context"

	"github.com/Sternrassler/menu-bot/pkg/delivery"
)

// Responder runs one action end to end: acknowledgement, response
// messages, then each product section. Sections share one pace: the
// pipeline pauses between items within a section and between sections.
type Responder struct {
	controller *Controller
	pipeline   *delivery.Pipeline
}

// NewResponder creates a responder.
func NewResponder(controller *Controller, pipeline *delivery.Pipeline) *Responder {
	return &Responder{controller: controller, pipeline: pipeline}
}

// Respond handles a and sends the result to a.ChatID.
func (r *Responder) Respond(ctx context.Context, a UserAction) {
	if ack, ok := r.controller.Acknowledge(a); ok {
		r.pipeline.Send(ctx, a.ChatID, ack)
	}

	resp := r.controller.Handle(ctx, a)
	if len(resp.Messages) > 0 {
		r.pipeline.Send(ctx, a.ChatID, resp.Messages...)
	}

	for i, section := range resp.Sections {
		if i > 0 {
			if err := r.pipeline.Pause(ctx); err != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if section.Title != "" {
			r.pipeline.Send(ctx, a.ChatID, delivery.Markdown(section.Title))
		}
		r.pipeline.DeliverWithNotice(ctx, a.ChatID, section.Products, section.EmptyNotice)
	}
}
