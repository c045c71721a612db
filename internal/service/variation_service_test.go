package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/rewrite"
	"github.com/wablast/wablast-backend/internal/retry"
)

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
}

func TestGenerateFirstVariationIsNumberOne(t *testing.T) {
	repo := &mockVariationRepo{}
	svc := NewVariationService(repo, &mockRewriter{})
	svc.Retry = fastRetry()

	v, err := svc.Generate(context.Background(), 1, "Hi {{name}}", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Number != 1 {
		t.Errorf("expected variation number 1, got %d", v.Number)
	}
}

func TestGenerateSequentialNumbersHaveNoGaps(t *testing.T) {
	repo := &mockVariationRepo{}
	svc := NewVariationService(repo, &mockRewriter{})
	svc.Retry = fastRetry()

	for i := 1; i <= 5; i++ {
		v, err := svc.Generate(context.Background(), 7, "Hi {{name}}", nil, "")
		if err != nil {
			t.Fatalf("generation %d failed: %v", i, err)
		}
		if v.Number != i {
			t.Errorf("expected number %d, got %d", i, v.Number)
		}
	}
}

func TestGenerateConcurrentCallsNeverRepeatNumbers(t *testing.T) {
	repo := &mockVariationRepo{}
	svc := NewVariationService(repo, &mockRewriter{})
	svc.Retry = fastRetry()

	const n = 10
	var wg sync.WaitGroup
	numbers := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := svc.Generate(context.Background(), 3, "Hi {{name}}", nil, "")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			numbers <- v.Number
		}()
	}
	wg.Wait()
	close(numbers)

	got := []int{}
	for num := range numbers {
		got = append(got, num)
	}
	sort.Ints(got)
	for i, num := range got {
		if num != i+1 {
			t.Fatalf("expected strictly increasing sequence 1..%d, got %v", n, got)
		}
	}
}

func TestGenerateTrimsHistoryToCap(t *testing.T) {
	repo := &mockVariationRepo{}
	for i := 1; i <= historyCap+5; i++ {
		repo.Create(&model.Variation{CampaignID: 1, Number: i, Text: fmt.Sprintf("variant %d", i)})
	}

	rw := &mockRewriter{}
	svc := NewVariationService(repo, rw)
	svc.Retry = fastRetry()

	v, err := svc.Generate(context.Background(), 1, "Hi", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// history trimmed, but numbering still counts the full set
	if v.Number != historyCap+6 {
		t.Errorf("expected number %d, got %d", historyCap+6, v.Number)
	}
	if len(rw.history[0]) != historyCap {
		t.Errorf("expected %d history items in prompt, got %d", historyCap, len(rw.history[0]))
	}
	// oldest-first, holding only the most recent cap
	if rw.history[0][0] != "variant 6" {
		t.Errorf("expected trimmed history to start at variant 6, got %q", rw.history[0][0])
	}
	if rw.history[0][historyCap-1] != fmt.Sprintf("variant %d", historyCap+5) {
		t.Errorf("expected newest variant last, got %q", rw.history[0][historyCap-1])
	}
}

func TestGenerateEmptyRewriteIsGenerationFailed(t *testing.T) {
	repo := &mockVariationRepo{}
	rw := &mockRewriter{fn: func(call int, req rewrite.Request) (string, error) {
		return "   ", nil
	}}
	svc := NewVariationService(repo, rw)
	svc.Retry = fastRetry()

	_, err := svc.Generate(context.Background(), 1, "Hi", nil, "")
	var genErr *appErrors.GenerationFailed
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}

	count, _ := repo.CountByCampaign(1)
	if count != 0 {
		t.Errorf("expected no variation persisted on failure, got %d", count)
	}
}

func TestGenerateRewriteErrorIsGenerationFailed(t *testing.T) {
	rw := &mockRewriter{fn: func(call int, req rewrite.Request) (string, error) {
		return "", errors.New("rewrite service error 503")
	}}
	svc := NewVariationService(&mockVariationRepo{}, rw)
	svc.Retry = fastRetry()

	_, err := svc.Generate(context.Background(), 1, "Hi", nil, "")
	var genErr *appErrors.GenerationFailed
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}
}

func TestPreWarmContinuesPastFailures(t *testing.T) {
	rw := &mockRewriter{fn: func(call int, req rewrite.Request) (string, error) {
		if call == 2 {
			return "", errors.New("blip")
		}
		return fmt.Sprintf("variant %d", call), nil
	}}
	repo := &mockVariationRepo{}
	svc := NewVariationService(repo, rw)
	svc.Retry = fastRetry()

	succeeded := svc.PreWarm(context.Background(), 1, "Hi", nil, 3, 0)
	if succeeded != 2 {
		t.Errorf("expected 2 successful pre-warm generations, got %d", succeeded)
	}
	count, _ := repo.CountByCampaign(1)
	if count != 2 {
		t.Errorf("expected 2 variations persisted, got %d", count)
	}
}
