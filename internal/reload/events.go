package reload

import (
	"context"
	"errors"
	"fmt"

	"logtrigger/internal/broker"
	"logtrigger/internal/constants"
	"logtrigger/internal/logger"
	"logtrigger/internal/rules"
	"logtrigger/pkg/models"
	"logtrigger/pkg/retry"
)

// EventHandler applies config update events published on a topic, so that
// several instances can be switched from one place.
type EventHandler struct {
	reloader *Reloader
	engine   *rules.Engine
	logger   logger.Logger
}

func NewEventHandler(reloader *Reloader, engine *rules.Engine, log logger.Logger) *EventHandler {
	return &EventHandler{reloader: reloader, engine: engine, logger: log}
}

// HandleMessage is a broker.HandlerFunc.
func (h *EventHandler) HandleMessage(ctx context.Context, msg broker.Message) error {
	var evt models.ConfigUpdateEvent
	if err := broker.Decode(msg, &evt); err != nil {
		return err
	}
	return h.Apply(ctx, evt)
}

func (h *EventHandler) Apply(ctx context.Context, evt models.ConfigUpdateEvent) error {
	if err := models.ValidateConfigUpdateEvent(&evt); err != nil {
		h.logger.WarnwCtx(ctx, "Ignoring invalid config update event", "error", err)
		return nil
	}

	h.logger.InfowCtx(ctx, "Received config update event",
		"event_type", evt.EventType,
		"action", evt.Action,
		"rule", evt.Rule,
		"changed_by", evt.ChangedBy,
	)

	switch evt.EventType {
	case models.EventTypeRulesUpdated:
		if evt.Action == models.ActionDelete && evt.Rule != "" {
			return h.ignoreMissing(ctx, h.reloader.Remove(evt.Rule))
		}
		_, err := h.reloader.Reload(ctx, constants.ReloadTriggerKafka)
		return err

	case models.EventTypeRuleToggled:
		return h.ignoreMissing(ctx, h.engine.SetRuleEnabled(evt.Rule, *evt.Enabled))
	}

	return nil
}

// ignoreMissing marks an unknown rule as fatal so the consumer does not
// retry the event.
func (h *EventHandler) ignoreMissing(ctx context.Context, err error) error {
	if errors.Is(err, rules.ErrRuleNotFound) {
		h.logger.WarnwCtx(ctx, "Config update names unknown rule", "error", err)
		return retry.NewFatalError(fmt.Errorf("apply config update: %w", err))
	}
	return err
}
