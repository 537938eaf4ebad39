package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"examforge/internal/cache"
	"examforge/internal/drafting"
	"examforge/internal/llm"
	"examforge/internal/progress"
)

// goodResponse parses into a draft that passes validation and the
// default rubric threshold.
const goodResponse = `VIGNETTE: A 19-year-old man presents with a six-month history of facial comedones and inflammatory papules. Examination shows open and closed comedones across the forehead and cheeks. Vital signs are normal, with a temperature of 36.8 C and blood pressure of 118/74 mm Hg.

LEAD-IN: Which of the following is the most appropriate initial therapy?

OPTION A: Topical tretinoin nightly
OPTION B: Oral isotretinoin daily
OPTION C: Oral prednisone taper
OPTION D: Topical ketoconazole cream
OPTION E: Intralesional steroid shots

CORRECT ANSWER: A

EXPLANATION: Topical retinoids are first-line therapy for comedonal and mild inflammatory acne. They normalize follicular keratinization, prevent the formation of new microcomedones, and carry anti-inflammatory activity of their own. Systemic agents are reserved for moderate to severe disease that fails an adequate topical trial. Starting with a topical retinoid also establishes the maintenance backbone that later combination regimens build on.

WHY B IS WRONG: Oral isotretinoin is reserved for severe nodulocystic acne.
WHY C IS WRONG: Systemic corticosteroids have no role in routine acne.
WHY D IS WRONG: Ketoconazole treats fungal disease, not acne vulgaris.
WHY E IS WRONG: Intralesional steroids target individual nodules only.

PEARLS:
- Topical retinoids are comedolytic.
- Combine with benzoyl peroxide to limit resistance.

CHECKLIST:
1. Vignette includes age and duration.
2. One unambiguous best answer.
`

// mediocreResponse is structurally valid but scores well under the
// rubric threshold: no clinical keywords, no rationales, a curt
// explanation.
const mediocreResponse = `VIGNETTE: Somebody walked into the building and sat down on the nearest chair, looking rather unwell for quite a while now, nobody knew why.

LEAD-IN: Pick the best choice below

OPTION A: First choice
OPTION B: Other choice
OPTION C: Third choice
OPTION D: Extra choice
OPTION E: Final choice

CORRECT ANSWER: B

EXPLANATION: Because it is.
`

// weakResponse is also valid but scores lower than mediocreResponse:
// a glaring option-length outlier on top of the same defects.
const weakResponse = `VIGNETTE: Somebody walked into the building and sat down on the nearest chair, looking rather unwell for quite a while now, nobody knew why.

LEAD-IN: Pick the best choice below

OPTION A: Yes
OPTION B: No
OPTION C: This extremely long and carefully hedged option is clearly written to stand out from all the rest of the options
OPTION D: Nah
OPTION E: Eh

CORRECT ANSWER: B

EXPLANATION: Because it is.
`

const markerless = "I am sorry, I cannot produce that in the requested layout."

func textResponse(s string) llm.MockResponse {
	return llm.MockResponse{Content: json.RawMessage(s)}
}

func newController(mock *llm.MockProvider, deps Deps, cfg Config) *Controller {
	deps.Agent = drafting.New(mock, drafting.DefaultConfig())
	return New(deps, cfg)
}

func TestGenerate_AcceptsOnFirstIteration(t *testing.T) {
	mock := llm.NewMockProvider(textResponse(goodResponse))
	archive := &fakeArchiver{}
	ctl := newController(mock, Deps{Archive: archive}, DefaultConfig())

	res, err := ctl.Generate(context.Background(), Request{Topic: "Acne vulgaris", Difficulty: 0.3}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted {
		t.Fatal("expected acceptance")
	}
	if len(res.Iterations) != 1 {
		t.Fatalf("expected 1 iteration, got %d", len(res.Iterations))
	}
	if len(res.FinalDraft.Options) != 5 {
		t.Fatalf("expected 5 options, got %d", len(res.FinalDraft.Options))
	}
	if res.Iterations[0].Trigger != "" {
		t.Fatalf("accepted iteration must carry no trigger, got %q", res.Iterations[0].Trigger)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 model call, got %d", mock.CallCount())
	}
	if archive.saved != 1 {
		t.Fatalf("expected 1 save, got %d", archive.saved)
	}
}

func TestGenerate_RecoversAfterDegradedIterations(t *testing.T) {
	mock := llm.NewMockProvider(
		textResponse(markerless),
		textResponse(markerless),
		textResponse(markerless),
		textResponse(markerless),
		textResponse(goodResponse),
	)
	ctl := newController(mock, Deps{}, DefaultConfig())

	res, err := ctl.Generate(context.Background(), Request{Topic: "Acne vulgaris", Difficulty: 0.3}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted {
		t.Fatal("expected acceptance on the final iteration")
	}
	if len(res.Iterations) != 5 {
		t.Fatalf("expected 5 recorded iterations, got %d", len(res.Iterations))
	}
	for i := 0; i < 4; i++ {
		if res.Iterations[i].Validation.IsValid {
			t.Fatalf("iteration %d should be invalid", i+1)
		}
		if res.Iterations[i].Trigger == "" {
			t.Fatalf("rejected iteration %d must carry a trigger", i+1)
		}
	}
	if !res.Iterations[4].Validation.IsValid {
		t.Fatal("final iteration should be valid")
	}

	// Revision prompts carry the rejection history.
	lastPrompt := mock.Calls[4].Messages[0].Content
	if !strings.Contains(lastPrompt, "rejected") || !strings.Contains(lastPrompt, "structural defect") {
		t.Fatalf("expected rejection history in revision prompt:\n%s", lastPrompt)
	}
}

func TestGenerate_IterationBudgetIsHonored(t *testing.T) {
	mock := llm.NewMockProvider(textResponse(markerless)).RepeatLast()
	ctl := newController(mock, Deps{}, DefaultConfig())

	res, err := ctl.Generate(context.Background(), Request{Topic: "Gout", Difficulty: 0.5}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted {
		t.Fatal("expected rejection")
	}
	if len(res.Iterations) != 5 {
		t.Fatalf("expected exactly 5 iterations, got %d", len(res.Iterations))
	}
	if mock.CallCount() != 5 {
		t.Fatalf("expected exactly 5 model calls, got %d", mock.CallCount())
	}
}

func TestGenerate_BestIterationWinsOnExhaustion(t *testing.T) {
	mock := llm.NewMockProvider(
		textResponse(mediocreResponse),
		textResponse(weakResponse),
	)
	ctl := newController(mock, Deps{}, Config{MaxIterations: 2})

	res, err := ctl.Generate(context.Background(), Request{Topic: "Gout", Difficulty: 0.5}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted {
		t.Fatal("expected rejection below threshold")
	}
	if len(res.Iterations) != 2 {
		t.Fatalf("expected 2 iterations, got %d", len(res.Iterations))
	}
	if res.Iterations[0].Rubric.Total <= res.Iterations[1].Rubric.Total {
		t.Fatalf("test setup broken: first=%d second=%d",
			res.Iterations[0].Rubric.Total, res.Iterations[1].Rubric.Total)
	}
	if res.FinalDraft.Options[0].Text != "First choice" {
		t.Fatalf("expected the first (better) draft, got option A %q", res.FinalDraft.Options[0].Text)
	}
	if res.FinalIteration != res.Iterations[0].Index {
		t.Fatalf("expected FinalIteration %d, got %d", res.Iterations[0].Index, res.FinalIteration)
	}
}

func TestGenerate_ModelFailureWithoutDraft(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}},
	).RepeatLast()
	ctl := newController(mock, Deps{}, DefaultConfig())

	_, err := ctl.Generate(context.Background(), Request{Topic: "Gout", Difficulty: 0.5}, "")
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected pipeline error, got %v", err)
	}
	if perr.Kind != KindModel || perr.Iteration != 1 {
		t.Fatalf("expected model failure at iteration 1, got %+v", perr)
	}
	// The provider error stays reachable for classification.
	if llm.Kind(err) != llm.KindRateLimit {
		t.Fatalf("expected rate limit classification, got %s", llm.Kind(err))
	}
}

func TestGenerate_ModelFailureKeepsBestDraft(t *testing.T) {
	mock := llm.NewMockProvider(
		textResponse(mediocreResponse),
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}},
	)
	mock.RepeatLast()
	ctl := newController(mock, Deps{}, DefaultConfig())

	res, err := ctl.Generate(context.Background(), Request{Topic: "Gout", Difficulty: 0.5}, "")
	if err != nil {
		t.Fatalf("a prior draft should beat the model error: %v", err)
	}
	if res.Accepted {
		t.Fatal("expected rejection")
	}
	if len(res.Iterations) != 1 {
		t.Fatalf("expected the surviving iteration, got %d", len(res.Iterations))
	}
}

func TestGenerate_BlankFirstResponseFailsFast(t *testing.T) {
	mock := llm.NewMockProvider(textResponse("  \n "))
	ctl := newController(mock, Deps{}, DefaultConfig())

	_, err := ctl.Generate(context.Background(), Request{Topic: "Gout", Difficulty: 0.5}, "")
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindEmptyDraft {
		t.Fatalf("expected empty draft failure, got %v", err)
	}
	var empty *drafting.ErrEmptyDraft
	if !errors.As(err, &empty) {
		t.Fatalf("expected wrapped ErrEmptyDraft, got %v", err)
	}
}

func TestGenerate_BlankMidRunConsumesBudget(t *testing.T) {
	mock := llm.NewMockProvider(
		textResponse(markerless),
		textResponse("   "),
		textResponse(goodResponse),
	)
	ctl := newController(mock, Deps{}, DefaultConfig())

	res, err := ctl.Generate(context.Background(), Request{Topic: "Gout", Difficulty: 0.5}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted {
		t.Fatal("expected acceptance on the third iteration")
	}
	// The blank iteration produced no draft, so only two are recorded,
	// with the gap visible in the indices.
	if len(res.Iterations) != 2 {
		t.Fatalf("expected 2 recorded iterations, got %d", len(res.Iterations))
	}
	if res.Iterations[0].Index != 1 || res.Iterations[1].Index != 3 {
		t.Fatalf("unexpected indices: %d, %d", res.Iterations[0].Index, res.Iterations[1].Index)
	}
}

func TestGenerate_Cancellation(t *testing.T) {
	mock := llm.NewMockProvider(textResponse(goodResponse))
	broker := progress.NewBroker()
	ctl := newController(mock, Deps{Broker: broker}, DefaultConfig())

	ch, cancelSub := broker.Subscribe("sess-1")
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctl.Generate(ctx, Request{Topic: "Gout", Difficulty: 0.5}, "sess-1")
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindCancelled {
		t.Fatalf("expected cancellation, got %v", err)
	}

	var events []progress.Event
	for ev := range ch {
		events = append(events, ev)
	}
	last := events[len(events)-1]
	if last.Stage != progress.StageError || last.Status != progress.StatusError {
		t.Fatalf("expected terminal error event, got %+v", last)
	}
}

func TestGenerate_ProgressEventSequence(t *testing.T) {
	mock := llm.NewMockProvider(textResponse(goodResponse))
	broker := progress.NewBroker()
	ctl := newController(mock, Deps{Broker: broker}, DefaultConfig())

	ch, cancelSub := broker.Subscribe("sess-1")
	defer cancelSub()

	if _, err := ctl.Generate(context.Background(), Request{Topic: "Acne vulgaris", Difficulty: 0.3}, "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stages []progress.Stage
	for ev := range ch {
		if ev.SessionID != "sess-1" {
			t.Fatalf("cross-session event: %+v", ev)
		}
		stages = append(stages, ev.Stage)
	}
	if stages[0] != progress.StageInit {
		t.Fatalf("expected init first, got %v", stages)
	}
	if stages[len(stages)-1] != progress.StageComplete {
		t.Fatalf("expected complete last, got %v", stages)
	}
	seen := map[progress.Stage]bool{}
	for _, s := range stages {
		seen[s] = true
	}
	for _, want := range []progress.Stage{progress.StageContext, progress.StageDraft, progress.StageValidate, progress.StageScore} {
		if !seen[want] {
			t.Fatalf("missing stage %s in %v", want, stages)
		}
	}
}

func TestGenerate_CacheHitIsIdempotent(t *testing.T) {
	mock := llm.NewMockProvider(textResponse(goodResponse))
	store := cache.New()
	ctl := newController(mock, Deps{Cache: store}, DefaultConfig())

	req := Request{Topic: "Acne vulgaris", Difficulty: 0.3, UseCache: true}

	first, err := ctl.Generate(context.Background(), req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first run must not be a cache hit")
	}

	second, err := ctl.Generate(context.Background(), req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second run should hit the cache")
	}
	if !reflect.DeepEqual(first.FinalDraft, second.FinalDraft) {
		t.Fatal("cached draft differs from the original")
	}
	if mock.CallCount() != 1 {
		t.Fatalf("cache hit must not call the model, got %d calls", mock.CallCount())
	}

	// Near-miss difficulty lands in the same bucket.
	req.Difficulty = 0.32
	third, err := ctl.Generate(context.Background(), req, "")
	if err != nil || !third.CacheHit {
		t.Fatalf("expected bucketed cache hit, got hit=%v err=%v", third != nil && third.CacheHit, err)
	}
}

func TestGenerate_NoCacheBypassesStore(t *testing.T) {
	mock := llm.NewMockProvider(textResponse(goodResponse), textResponse(goodResponse))
	store := cache.New()
	ctl := newController(mock, Deps{Cache: store}, DefaultConfig())

	req := Request{Topic: "Acne vulgaris", Difficulty: 0.3, UseCache: false}
	if _, err := ctl.Generate(context.Background(), req, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing cached, got %d entries", store.Len())
	}

	if res, err := ctl.Generate(context.Background(), req, ""); err != nil || res.CacheHit {
		t.Fatalf("expected a fresh run, got hit=%v err=%v", res != nil && res.CacheHit, err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("expected 2 model calls, got %d", mock.CallCount())
	}
}

func TestGenerate_CorruptCacheEntryIsDropped(t *testing.T) {
	mock := llm.NewMockProvider(textResponse(goodResponse))
	store := cache.New()
	key := cache.Key{Topic: "Acne vulgaris", Difficulty: 0.3, Variant: string(VariantVignette)}
	store.Put(key, []byte("{not json"))

	ctl := newController(mock, Deps{Cache: store}, DefaultConfig())
	res, err := ctl.Generate(context.Background(), Request{Topic: "Acne vulgaris", Difficulty: 0.3, UseCache: true}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CacheHit {
		t.Fatal("corrupt entry must be treated as a miss")
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected a fresh model call, got %d", mock.CallCount())
	}
}

func TestGenerate_InvalidRequests(t *testing.T) {
	ctl := newController(llm.NewMockProvider(), Deps{}, DefaultConfig())

	cases := []Request{
		{Topic: "", Difficulty: 0.5},
		{Topic: "Gout", Difficulty: -0.1},
		{Topic: "Gout", Difficulty: 1.5},
		{Topic: "Gout", Difficulty: 0.5, Variant: "haiku"},
	}
	for _, req := range cases {
		_, err := ctl.Generate(context.Background(), req, "")
		var perr *Error
		if !errors.As(err, &perr) || perr.Kind != KindInvalidRequest {
			t.Fatalf("request %+v: expected invalid request, got %v", req, err)
		}
	}
}

func TestGenerate_SaveFailureDoesNotFailTheRun(t *testing.T) {
	mock := llm.NewMockProvider(textResponse(goodResponse))
	archive := &fakeArchiver{err: errors.New("disk full")}
	ctl := newController(mock, Deps{Archive: archive}, DefaultConfig())

	res, err := ctl.Generate(context.Background(), Request{Topic: "Acne vulgaris", Difficulty: 0.3}, "")
	if err != nil {
		t.Fatalf("save failures must not surface: %v", err)
	}
	if !res.Accepted {
		t.Fatal("expected acceptance")
	}
}

func TestGenerate_StructuredVariant(t *testing.T) {
	payload := `{
		"stem": "A 58-year-old woman presents with a two-week history of progressive dyspnea. Examination shows bibasilar crackles and vital signs show an elevated blood pressure.",
		"lead_in": "Which of the following is the most likely diagnosis?",
		"options": [
			{"text": "Heart failure", "rationale": "fits the picture"},
			{"text": "Pulmonary embolus", "rationale": "no pleuritic pain"},
			{"text": "Renal failure", "rationale": "creatinine normal"},
			{"text": "Liver disease", "rationale": "no stigmata seen"},
			{"text": "Lung fibrosis", "rationale": "course too rapid"}
		],
		"correct_index": 0,
		"explanation": "Progressive dyspnea with bibasilar crackles and hypertension points to decompensated heart failure. The tempo and examination findings fit a cardiogenic process far better than the listed alternatives, and first-line management follows directly from that diagnosis. Loop diuresis and afterload reduction address the congestion while the precipitant is sought.",
		"pearls": ["Crackles plus dyspnea means volume until proven otherwise."]
	}`
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(payload)})
	ctl := newController(mock, Deps{}, DefaultConfig())

	res, err := ctl.Generate(context.Background(), Request{Topic: "Heart failure", Difficulty: 0.6, Variant: VariantStructured}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected acceptance, rubric %+v", res.Iterations[len(res.Iterations)-1].Rubric)
	}
	if mock.Calls[0].Schema == nil {
		t.Fatal("structured variant must request a schema")
	}
}

type fakeArchiver struct {
	saved int
	err   error
}

func (f *fakeArchiver) SaveQuestion(ctx context.Context, req Request, res *Result) error {
	if f.err != nil {
		return f.err
	}
	f.saved++
	return nil
}
