package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"examforge/internal/cache"
	"examforge/internal/drafting"
	"examforge/internal/progress"
	"examforge/internal/question"
	"examforge/internal/research"
)

// Config controls the refinement loop.
type Config struct {
	// MaxIterations bounds the draft-validate-score loop.
	MaxIterations int

	// PassThreshold is the rubric total needed for acceptance.
	PassThreshold int
}

// DefaultConfig returns the standard loop configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 5,
		PassThreshold: question.DefaultPassThreshold,
	}
}

// Archiver persists accepted questions. Persistence is a side channel:
// a save failure never fails the run.
type Archiver interface {
	SaveQuestion(ctx context.Context, req Request, res *Result) error
}

// Deps are the controller's collaborators. Agent is required; the rest
// are optional and disable their feature when nil.
type Deps struct {
	Agent   *drafting.Agent
	Sources research.Provider
	Cache   *cache.Store
	Broker  *progress.Broker
	Archive Archiver

	// Scorer overrides the variant's rubric scorer when set.
	Scorer question.Scorer
}

// Controller owns the refinement state machine. One Generate call runs
// one session; the controller itself is stateless across calls and safe
// for concurrent use.
type Controller struct {
	deps Deps
	cfg  Config
}

// New creates a Controller.
func New(deps Deps, cfg Config) *Controller {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = question.DefaultPassThreshold
	}
	return &Controller{deps: deps, cfg: cfg}
}

// Generate runs the full pipeline for one request. If sessionID is
// empty a fresh one is assigned; callers that want to observe progress
// pass their own and subscribe to the broker under it.
func (c *Controller) Generate(ctx context.Context, req Request, sessionID string) (*Result, error) {
	req.Variant = req.Variant.normalize()
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	start := time.Now()
	c.publish(sessionID, progress.StageInit, progress.StatusRunning, "topic: "+req.Topic)

	key := cache.Key{Topic: req.Topic, Difficulty: req.Difficulty, Variant: string(req.Variant)}
	if req.UseCache && c.deps.Cache != nil {
		if res, ok := c.cacheGet(key); ok {
			c.publish(sessionID, progress.StageComplete, progress.StatusComplete, "cache hit")
			return res, nil
		}
	}

	c.publish(sessionID, progress.StageContext, progress.StatusRunning, "")
	rc := c.fetchContext(ctx, req.Topic)
	c.publish(sessionID, progress.StageContext, progress.StatusComplete,
		fmt.Sprintf("%d snippets from %d sources", len(rc.Snippets()), len(rc.Sources)))

	scorer := c.deps.Scorer
	if scorer == nil {
		scorer = req.Variant.scorer(c.cfg.PassThreshold)
	}

	var records []IterationRecord
	var history []drafting.Feedback

	for it := 1; it <= c.cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, c.fail(sessionID, &Error{Kind: KindCancelled, Iteration: it, Err: err})
		}

		c.publish(sessionID, progress.StageDraft, progress.StatusRunning, fmt.Sprintf("iteration %d", it))

		d, err := c.deps.Agent.Draft(ctx, drafting.Input{
			Topic:      req.Topic,
			Difficulty: req.Difficulty,
			Mode:       req.Variant.mode(),
			Context:    rc,
			History:    history,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.fail(sessionID, &Error{Kind: KindCancelled, Iteration: it, Err: ctx.Err()})
			}

			var empty *drafting.ErrEmptyDraft
			if errors.As(err, &empty) {
				// Fatal for this iteration only; the raw excerpt is in
				// the error. Consumes budget instead of retrying the
				// same prompt indefinitely.
				c.publish(sessionID, progress.StageDraft, progress.StatusError, "response had no usable sections")
				if it == 1 {
					return nil, c.fail(sessionID, &Error{Kind: KindEmptyDraft, Iteration: it, Err: err})
				}
				history = append(history, drafting.Feedback{Iteration: it, Trigger: "response had no recognizable sections; follow the required format exactly"})
				continue
			}

			// Model client failure after its retry and fallback chains.
			// With a prior draft in hand the best one wins over an error.
			if best := bestRecord(records); best != nil {
				c.publish(sessionID, progress.StageDraft, progress.StatusError, "model failure; keeping best draft so far")
				return c.finish(ctx, sessionID, req, key, records, *best, false, start)
			}
			return nil, c.fail(sessionID, &Error{Kind: KindModel, Iteration: it, Err: err})
		}
		c.publish(sessionID, progress.StageDraft, progress.StatusComplete, "")

		c.publish(sessionID, progress.StageValidate, progress.StatusRunning, "")
		vr := question.Validate(*d)
		rec := IterationRecord{Index: it, Draft: *d, Validation: vr}

		if !vr.IsValid {
			// An invalid draft cannot be scored meaningfully.
			rec.Trigger = vr.Errors[0]
			records = append(records, rec)
			c.publish(sessionID, progress.StageValidate, progress.StatusError, rec.Trigger)
			c.publish(sessionID, progress.StageScore, progress.StatusSkipped, "")
			c.publish(sessionID, progress.StageRefine, progress.StatusRunning, rec.Trigger)
			history = append(history, drafting.Feedback{Iteration: it, Trigger: "structural defect: " + rec.Trigger})
			continue
		}
		c.publish(sessionID, progress.StageValidate, progress.StatusComplete, fmt.Sprintf("score %d", vr.Score))

		c.publish(sessionID, progress.StageScore, progress.StatusRunning, "")
		rec.Rubric = scorer.Score(*d, rc)
		c.publish(sessionID, progress.StageScore, progress.StatusComplete, fmt.Sprintf("rubric %d/25", rec.Rubric.Total))

		if rec.Rubric.Passed {
			records = append(records, rec)
			return c.finish(ctx, sessionID, req, key, records, rec, true, start)
		}

		rec.Trigger = rec.Rubric.WeakestDimension()
		records = append(records, rec)
		c.publish(sessionID, progress.StageRefine, progress.StatusRunning, "weakest dimension: "+rec.Trigger)
		history = append(history, drafting.Feedback{Iteration: it, Trigger: fmt.Sprintf("rubric %d/25, weakest dimension %q", rec.Rubric.Total, rec.Trigger)})
	}

	// Budget exhausted: the best-scoring iteration wins, which is not
	// necessarily the last one.
	best := bestRecord(records)
	if best == nil {
		return nil, c.fail(sessionID, &Error{Kind: KindModel, Iteration: c.cfg.MaxIterations,
			Err: errors.New("no draft produced within the iteration budget")})
	}
	return c.finish(ctx, sessionID, req, key, records, *best, false, start)
}

func validateRequest(req Request) error {
	if req.Topic == "" {
		return &Error{Kind: KindInvalidRequest, Err: errors.New("topic is required")}
	}
	if req.Difficulty < 0 || req.Difficulty > 1 {
		return &Error{Kind: KindInvalidRequest, Err: fmt.Errorf("difficulty %v outside [0,1]", req.Difficulty)}
	}
	if !req.Variant.Valid() {
		return &Error{Kind: KindInvalidRequest, Err: fmt.Errorf("unknown variant %q", req.Variant)}
	}
	return nil
}

func (c *Controller) fetchContext(ctx context.Context, topic string) research.Context {
	if c.deps.Sources == nil {
		return research.Empty{}.Fetch(ctx, topic)
	}
	return c.deps.Sources.Fetch(ctx, topic)
}

// cacheGet loads and decodes a cached result. A corrupt entry is
// dropped and treated as a miss.
func (c *Controller) cacheGet(key cache.Key) (*Result, bool) {
	raw, ok := c.deps.Cache.Get(key)
	if !ok {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		c.deps.Cache.Invalidate(key)
		return nil, false
	}
	res.CacheHit = true
	return &res, true
}

// finish assembles the terminal result, runs the best-effort save and
// cache stages, and closes the session.
func (c *Controller) finish(ctx context.Context, sessionID string, req Request, key cache.Key,
	records []IterationRecord, final IterationRecord, accepted bool, start time.Time) (*Result, error) {

	res := &Result{
		FinalDraft:     final.Draft,
		Iterations:     records,
		FinalIteration: final.Index,
		Accepted:       accepted,
		TotalDuration:  time.Since(start),
	}

	if c.deps.Archive != nil && accepted {
		c.publish(sessionID, progress.StageSave, progress.StatusRunning, "")
		if err := c.deps.Archive.SaveQuestion(ctx, req, res); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to persist question: %v\n", err)
			c.publish(sessionID, progress.StageSave, progress.StatusError, err.Error())
		} else {
			c.publish(sessionID, progress.StageSave, progress.StatusComplete, "")
		}
	} else {
		c.publish(sessionID, progress.StageSave, progress.StatusSkipped, "")
	}

	if req.UseCache && c.deps.Cache != nil {
		if raw, err := json.Marshal(res); err == nil {
			c.deps.Cache.Put(key, raw)
		}
	}

	msg := "accepted"
	if !accepted {
		msg = fmt.Sprintf("not accepted; best of %d iterations", len(records))
	}
	c.publish(sessionID, progress.StageComplete, progress.StatusComplete, msg)
	return res, nil
}

// fail publishes the terminal error event and returns err unchanged.
func (c *Controller) fail(sessionID string, err *Error) error {
	c.publish(sessionID, progress.StageError, progress.StatusError, err.Error())
	return err
}

func (c *Controller) publish(sessionID string, stage progress.Stage, status progress.Status, msg string) {
	if c.deps.Broker == nil {
		return
	}
	c.deps.Broker.Publish(progress.Event{
		SessionID: sessionID,
		Stage:     stage,
		Status:    status,
		Message:   msg,
	})
}

// bestRecord picks the record with the highest rubric total, ties
// broken by earliest index. Structurally invalid records carry a zero
// rubric, so any valid draft outranks them.
func bestRecord(records []IterationRecord) *IterationRecord {
	var best *IterationRecord
	for i := range records {
		if best == nil || records[i].Rubric.Total > best.Rubric.Total {
			best = &records[i]
		}
	}
	return best
}
