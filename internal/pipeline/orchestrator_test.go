package pipeline

import (
	"context"
	"fmt"
	"testing"

	"receiptd/internal/entity"
	"receiptd/internal/llm"
	"receiptd/internal/rules"
)

type fakeExtractor struct {
	rec entity.Receipt
	err error
}

func (f fakeExtractor) Extract(_ context.Context, _ string) (entity.Receipt, []byte, error) {
	if f.err != nil {
		return entity.Receipt{}, nil, f.err
	}
	return f.rec, nil, nil
}

const sampleText = "SUBTOTAL $9.88\nTAX 8.0% $0.79\nTOTAL $10.67"

func TestExtractFallsBackOnEveryRecoverableError(t *testing.T) {
	det := rules.NewExtractor(nil)
	want := det.Extract(sampleText)

	for _, aiErr := range []error{
		fmt.Errorf("%w: connection refused", llm.ErrUnavailable),
		fmt.Errorf("%w: deadline", llm.ErrTimeout),
		fmt.Errorf("%w: bad schema", llm.ErrMalformedOutput),
	} {
		orch := NewOrchestrator(fakeExtractor{err: aiErr}, det, nil)
		got, err := orch.Extract(context.Background(), sampleText)
		if err != nil {
			t.Fatalf("ai error %v must not surface, got %v", aiErr, err)
		}
		if got.ExtractionPath != entity.PathDeterministic {
			t.Errorf("path = %q, want deterministic after %v", got.ExtractionPath, aiErr)
		}
		if got.Total == nil || *got.Total != *want.Total {
			t.Errorf("fallback result diverged from deterministic extraction")
		}
	}
}

func TestExtractNonRecoverableErrorSurfaces(t *testing.T) {
	orch := NewOrchestrator(fakeExtractor{err: context.Canceled}, nil, nil)
	_, err := orch.Extract(context.Background(), sampleText)
	if err == nil {
		t.Fatal("cancellation must propagate")
	}
}

func TestExtractWithoutAIUsesRules(t *testing.T) {
	orch := NewOrchestrator(nil, nil, nil)
	got, err := orch.Extract(context.Background(), sampleText)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.ExtractionPath != entity.PathDeterministic {
		t.Errorf("path = %q", got.ExtractionPath)
	}
}

func TestPostprocessRoundsAndDropsNegatives(t *testing.T) {
	bad := -3.0
	sub := 9.8849
	rec := entity.Receipt{
		ExtractionPath: entity.PathAI,
		Subtotal:       &sub,
		Tax:            &bad,
		Items: []entity.Item{
			{ItemName: "A", ItemPrice: 1.005},
			{ItemName: "B", ItemPrice: -2},
		},
		ConfidenceScore: 0.9,
	}
	orch := NewOrchestrator(fakeExtractor{rec: rec}, nil, nil)
	got, err := orch.Extract(context.Background(), "A 1.00")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Tax != nil {
		t.Error("negative tax must be dropped")
	}
	if got.Subtotal == nil || *got.Subtotal != 9.88 {
		t.Errorf("subtotal = %v, want rounded 9.88", got.Subtotal)
	}
	if len(got.Items) != 1 || got.Items[0].ItemName != "A" {
		t.Errorf("items = %v, want negative-priced item removed", got.Items)
	}
}

func TestPostprocessRecoversItemsFromRules(t *testing.T) {
	rec := entity.Receipt{
		ExtractionPath:  entity.PathAI,
		StoreName:       "WALMART",
		Items:           []entity.Item{},
		ConfidenceScore: 0.8,
	}
	orch := NewOrchestrator(fakeExtractor{rec: rec}, nil, nil)
	got, err := orch.Extract(context.Background(), "WALMART\nMILK 3.48\nBREAD 2.12")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got.Items) != 2 {
		t.Errorf("items = %v, want recovered from deterministic scan", got.Items)
	}
	if got.ExtractionPath != entity.PathAI {
		t.Errorf("path = %q, recovery must not change the path", got.ExtractionPath)
	}
}

func TestPostprocessDampsInconsistentSums(t *testing.T) {
	sub, tax, total := 10.0, 1.0, 99.0
	rec := entity.Receipt{
		ExtractionPath:  entity.PathAI,
		Subtotal:        &sub,
		Tax:             &tax,
		Total:           &total,
		Items:           []entity.Item{{ItemName: "X", ItemPrice: 10}},
		ConfidenceScore: 0.8,
	}
	orch := NewOrchestrator(fakeExtractor{rec: rec}, nil, nil)
	got, err := orch.Extract(context.Background(), "X 10.00")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.ConfidenceScore >= 0.8 {
		t.Errorf("confidence = %v, want damped below the reported 0.8", got.ConfidenceScore)
	}
}

func TestProcessTextNormalizesBeforeExtraction(t *testing.T) {
	det := rules.NewExtractor(nil)
	svc := NewService(nil, NewOrchestrator(nil, det, nil), nil)
	res, err := svc.ProcessText(context.Background(), "SUBTOTAL   $9.88\r\nTAX 8.0%   $0.79\r\nTOTAL $10.67")
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if res.Receipt.Total == nil || *res.Receipt.Total != 10.67 {
		t.Errorf("total = %v", res.Receipt.Total)
	}
	if res.Text.Source != "text" {
		t.Errorf("source = %q", res.Text.Source)
	}
}
