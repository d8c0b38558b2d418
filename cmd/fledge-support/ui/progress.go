package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"fledge/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Progress turns the spans of a bundle build into one status line per
// step transition.
type Progress struct {
	provider *sdktrace.TracerProvider
}

// NewProgress reports every step transition to report.
func NewProgress(report func(line string)) *Progress {
	observer := newStepObserver(report)
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&stepSpanProcessor{observer: observer}))
	return &Progress{provider: provider}
}

func (p *Progress) Tracer(name string) trace.Tracer {
	return p.provider.Tracer(name)
}

func (p *Progress) Close() {
	_ = p.provider.Shutdown(context.Background())
}

type stepStatus string

const (
	stepPending stepStatus = "pending"
	stepRunning stepStatus = "running"
	stepDone    stepStatus = "done"
	stepFailed  stepStatus = "failed"
)

type stepState struct {
	ID      string
	Title   string
	Status  stepStatus
	Skipped int
	Message string
}

type stepObserver struct {
	mu     sync.Mutex
	steps  map[string]stepState
	order  []string
	report func(string)
}

func newStepObserver(report func(string)) *stepObserver {
	return &stepObserver{
		steps:  make(map[string]stepState),
		report: report,
	}
}

func (o *stepObserver) onPlan(plan telemetry.Plan) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, planned := range plan.Steps {
		id := strings.TrimSpace(planned.ID)
		if id == "" {
			continue
		}
		if _, exists := o.steps[id]; !exists {
			o.order = append(o.order, id)
		}
		title := strings.TrimSpace(planned.Title)
		if title == "" {
			title = id
		}
		o.steps[id] = stepState{ID: id, Title: title, Status: stepPending}
	}
}

func (o *stepObserver) onStepStart(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.ensureStepLocked(id)
	step.Status = stepRunning
	o.steps[step.ID] = step
	o.emitLocked(step)
}

func (o *stepObserver) onStepEnd(id string, failed bool, message string, skipped int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.ensureStepLocked(id)
	step.Skipped = skipped
	if failed {
		step.Status = stepFailed
		step.Message = strings.TrimSpace(message)
	} else {
		step.Status = stepDone
	}
	o.steps[step.ID] = step
	o.emitLocked(step)
}

func (o *stepObserver) ensureStepLocked(id string) stepState {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "unnamed"
	}
	if step, exists := o.steps[id]; exists {
		return step
	}
	o.order = append(o.order, id)
	return stepState{ID: id, Title: id, Status: stepPending}
}

func (o *stepObserver) emitLocked(step stepState) {
	if o.report == nil {
		return
	}
	o.report(formatStepLine(step, o.positionLocked(step.ID), len(o.order)))
}

func (o *stepObserver) positionLocked(id string) int {
	for i, known := range o.order {
		if known == id {
			return i + 1
		}
	}
	return 0
}

func formatStepLine(step stepState, pos, total int) string {
	prefix := "[..]"
	switch step.Status {
	case stepRunning:
		prefix = "[->]"
	case stepDone:
		prefix = "[ok]"
	case stepFailed:
		prefix = "[x]"
	}

	line := fmt.Sprintf("%s %d/%d %s", prefix, pos, total, step.Title)
	var notes []string
	if step.Skipped > 0 {
		notes = append(notes, fmt.Sprintf("%d skipped", step.Skipped))
	}
	if step.Message != "" {
		notes = append(notes, step.Message)
	}
	if len(notes) > 0 {
		line += " (" + strings.Join(notes, "; ") + ")"
	}
	return line
}

type stepSpanProcessor struct {
	observer *stepObserver
}

func (p *stepSpanProcessor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if span.Parent().IsValid() {
		p.observer.onStepStart(span.Name())
		return
	}

	raw := attributeValue(span.Attributes(), telemetry.PlanJSONKey)
	if strings.TrimSpace(raw) == "" {
		return
	}
	var plan telemetry.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return
	}
	p.observer.onPlan(plan)
}

func (p *stepSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	if !span.Parent().IsValid() {
		return
	}

	skipped := 0
	for _, event := range span.Events() {
		if event.Name == telemetry.SkipEventName {
			skipped++
		}
	}
	status := span.Status()
	p.observer.onStepEnd(span.Name(), status.Code == codes.Error, status.Description, skipped)
}

func (p *stepSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *stepSpanProcessor) ForceFlush(context.Context) error { return nil }

func attributeValue(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}
