package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFireNoHandlers(t *testing.T) {
	d := NewDispatcher()
	assert.Equal(t, Continue, d.Fire(context.TODO(), Load, &Payload{}))

	var nilDispatcher *Dispatcher
	assert.Equal(t, Continue, nilDispatcher.Fire(context.TODO(), Load, &Payload{}))
}

func TestFireOrderAndVerdicts(t *testing.T) {
	d := NewDispatcher()

	var calls []string
	d.Register(BeforeFileDownload, func(_ context.Context, _ Event, _ *Payload) (Outcome, error) {
		calls = append(calls, "first")
		return Continue, nil
	})
	d.Register(BeforeFileDownload, func(_ context.Context, _ Event, _ *Payload) (Outcome, error) {
		calls = append(calls, "second")
		return Skip, nil
	})
	d.Register(BeforeFileDownload, func(_ context.Context, _ Event, _ *Payload) (Outcome, error) {
		calls = append(calls, "third")
		return Continue, nil
	})

	assert.Equal(t, Skip, d.Fire(context.TODO(), BeforeFileDownload, &Payload{}))
	assert.Equal(t, []string{"first", "second"}, calls, "first non-Continue verdict stops the chain")
}

func TestFireErrorAborts(t *testing.T) {
	d := NewDispatcher()
	d.Register(BeforeFileDelete, func(_ context.Context, _ Event, _ *Payload) (Outcome, error) {
		return Continue, errors.New("backend unavailable")
	})
	assert.Equal(t, Abort, d.Fire(context.TODO(), BeforeFileDelete, &Payload{}))
}

func TestFirePanicAborts(t *testing.T) {
	d := NewDispatcher()
	d.Register(BeforeFileUpload, func(_ context.Context, _ Event, _ *Payload) (Outcome, error) {
		panic("boom")
	})
	assert.Equal(t, Abort, d.Fire(context.TODO(), BeforeFileUpload, &Payload{}))
}

func TestFirePayloadVisible(t *testing.T) {
	d := NewDispatcher()
	var seen string
	d.Register(AfterFileDownload, func(_ context.Context, _ Event, p *Payload) (Outcome, error) {
		seen = p.Path
		return Continue, nil
	})
	d.Fire(context.TODO(), AfterFileDownload, &Payload{Path: "/files/a.txt", Count: 3})
	assert.Equal(t, "/files/a.txt", seen)
}
