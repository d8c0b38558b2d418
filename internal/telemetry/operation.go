// Package telemetry traces support bundle builds: one root span per build
// carrying the planned step sequence, one child span per step.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	PlanEventName = "support.plan"
	SkipEventName = "support.step.skipped"

	GenerationKey = "support.generation_id"
	PlanJSONKey   = "support.plan.json"
	IsolatedKey   = "support.step.isolated"
	ItemKey       = "support.step.item"
	ErrorKey      = "support.step.error"

	defaultOperation = "support.build"
)

type PlannedStep struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Isolated bool   `json:"isolated,omitempty"`
}

type Plan struct {
	GenerationID string        `json:"generation_id"`
	Steps        []PlannedStep `json:"steps"`
}

// Operation is the root span of one build.
type Operation struct {
	ctx      context.Context
	tracer   trace.Tracer
	span     trace.Span
	isolated map[string]bool
}

func StartBuild(ctx context.Context, tracer trace.Tracer, operation string, plan Plan) (*Operation, error) {
	if tracer == nil {
		return nil, fmt.Errorf("start build trace: tracer is required")
	}
	if err := validatePlan(plan); err != nil {
		return nil, fmt.Errorf("start build trace: %w", err)
	}

	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = defaultOperation
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("start build trace: marshal plan: %w", err)
	}

	spanCtx, span := tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String(GenerationKey, plan.GenerationID),
		attribute.String(PlanJSONKey, string(planJSON)),
	))
	span.AddEvent(PlanEventName, trace.WithAttributes(
		attribute.String(PlanJSONKey, string(planJSON)),
	))

	isolated := make(map[string]bool, len(plan.Steps))
	for _, step := range plan.Steps {
		isolated[step.ID] = step.Isolated
	}
	return &Operation{ctx: spanCtx, tracer: tracer, span: span, isolated: isolated}, nil
}

func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// RunStep runs fn inside a child span named after the step.
func (o *Operation) RunStep(ctx context.Context, id string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}

	stepID := strings.TrimSpace(id)
	if stepID == "" {
		return fmt.Errorf("run build step: step id is required")
	}
	if o == nil || o.tracer == nil {
		return fn(ctx)
	}
	if ctx == nil {
		ctx = o.ctx
	}

	stepCtx, span := o.tracer.Start(ctx, stepID, trace.WithAttributes(
		attribute.Bool(IsolatedKey, o.isolated[stepID]),
	))
	defer span.End()

	if err := fn(stepCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		return err
	}
	return nil
}

// RecordSkip marks a swallowed failure on the step span found in ctx. The
// step itself keeps an OK status.
func RecordSkip(ctx context.Context, item string, err error) {
	span := trace.SpanFromContext(ctx)
	attrs := []attribute.KeyValue{attribute.String(ItemKey, item)}
	if err != nil {
		attrs = append(attrs, attribute.String(ErrorKey, err.Error()))
	}
	span.AddEvent(SkipEventName, trace.WithAttributes(attrs...))
}

func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}

func validatePlan(plan Plan) error {
	if strings.TrimSpace(plan.GenerationID) == "" {
		return fmt.Errorf("plan has empty generation id")
	}
	seen := make(map[string]struct{}, len(plan.Steps))
	for i, step := range plan.Steps {
		stepID := strings.TrimSpace(step.ID)
		if stepID == "" {
			return fmt.Errorf("step %d has empty id", i)
		}
		if _, exists := seen[stepID]; exists {
			return fmt.Errorf("duplicate step id %q", stepID)
		}
		seen[stepID] = struct{}{}
	}
	return nil
}
