package jobs

import (
	"context"
	"testing"
)

func TestUnmarshalPayloadEngineRebuild(t *testing.T) {
	q := &Queue{}
	job := &Job{JobType: JobTypeEngineRebuild, Payload: []byte(`{"force":true}`)}
	if err := q.unmarshalPayload(job); err != nil {
		t.Fatalf("unmarshalPayload: %v", err)
	}
	payload, ok := job.PayloadData.(EngineRebuildPayload)
	if !ok {
		t.Fatalf("PayloadData = %#v, want EngineRebuildPayload", job.PayloadData)
	}
	if !payload.Force {
		t.Fatal("expected Force to be true")
	}
}

func TestUnmarshalPayloadCacheMaintenance(t *testing.T) {
	q := &Queue{}
	job := &Job{JobType: JobTypeCacheMaintenance, Payload: []byte(`{}`)}
	if err := q.unmarshalPayload(job); err != nil {
		t.Fatalf("unmarshalPayload: %v", err)
	}
	if _, ok := job.PayloadData.(CacheMaintenancePayload); !ok {
		t.Fatalf("PayloadData = %#v, want CacheMaintenancePayload", job.PayloadData)
	}
}

func TestUnmarshalPayloadUnknownTypeIsNoop(t *testing.T) {
	q := &Queue{}
	job := &Job{JobType: "something_else", Payload: []byte(`{"x":1}`)}
	if err := q.unmarshalPayload(job); err != nil {
		t.Fatalf("unmarshalPayload: %v", err)
	}
	if job.PayloadData != nil {
		t.Fatalf("PayloadData = %#v, want nil for an unrecognized job type", job.PayloadData)
	}
}

func TestUnmarshalPayloadEmptyIsNoop(t *testing.T) {
	q := &Queue{}
	job := &Job{JobType: JobTypeEngineRebuild}
	if err := q.unmarshalPayload(job); err != nil {
		t.Fatalf("unmarshalPayload: %v", err)
	}
	if job.PayloadData != nil {
		t.Fatalf("PayloadData = %#v, want nil when Payload is empty", job.PayloadData)
	}
}

func TestJobHandlerFuncAdaptsPlainFunction(t *testing.T) {
	called := false
	var h JobHandler = JobHandlerFunc(func(_ context.Context, _ *Job) error {
		called = true
		return nil
	})
	if err := h.Handle(context.Background(), &Job{}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !called {
		t.Fatal("expected the wrapped function to run")
	}
}
