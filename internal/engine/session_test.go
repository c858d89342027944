package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records scheduled actions and lets tests fire them manually,
// so session transitions run without real timers.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

type fakeTask struct {
	chatID    int64
	delay     time.Duration
	kind      ActionKind
	fn        func()
	cancelled bool
	fired     bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{}
}

func (f *fakeScheduler) Schedule(chatID int64, delay time.Duration, kind ActionKind, fn func()) CancelFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := &fakeTask{chatID: chatID, delay: delay, kind: kind, fn: fn}
	f.tasks = append(f.tasks, task)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		task.cancelled = true
	}
}

func (f *fakeScheduler) CancelAll(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if task.chatID == chatID && !task.fired {
			task.cancelled = true
		}
	}
}

// pending returns the live tasks for a chat in scheduling order.
func (f *fakeScheduler) pending(chatID int64) []*fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var live []*fakeTask
	for _, task := range f.tasks {
		if task.chatID == chatID && !task.fired && !task.cancelled {
			live = append(live, task)
		}
	}
	return live
}

// fire runs the first live task of the given kind, as its timer would.
func (f *fakeScheduler) fire(t *testing.T, chatID int64, kind ActionKind) {
	t.Helper()
	f.mu.Lock()
	var target *fakeTask
	for _, task := range f.tasks {
		if task.chatID == chatID && task.kind == kind && !task.fired && !task.cancelled {
			target = task
			break
		}
	}
	if target != nil {
		target.fired = true
	}
	f.mu.Unlock()

	require.NotNil(t, target, "no pending %s task for chat %d", kind, chatID)
	target.fn()
}

// fakePublisher records everything a session publishes.
type fakePublisher struct {
	mu        sync.Mutex
	questions []string
	hints     []Hint
	corrects  []string
	reveals   []string // "answer/reason"
	scores    []scoresCall
	notices   []string
}

type scoresCall struct {
	standings []Score
	questions int
	gameEnded bool
}

func (p *fakePublisher) SendQuestion(n int, q *Question) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions = append(p.questions, fmt.Sprintf("%d:%s", n, q.Prompt))
}

func (p *fakePublisher) SendHint(q *Question, h Hint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hints = append(p.hints, h)
}

func (p *fakePublisher) SendCorrect(q *Question, user User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.corrects = append(p.corrects, q.Answer)
}

func (p *fakePublisher) SendReveal(q *Question, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reveals = append(p.reveals, q.Answer+"/"+reason)
}

func (p *fakePublisher) SendScores(standings []Score, questions int, gameEnded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scores = append(p.scores, scoresCall{standings: standings, questions: questions, gameEnded: gameEnded})
}

func (p *fakePublisher) SendNotice(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, text)
}

var testTimings = Timings{
	ToFirstQuestion:   5 * time.Second,
	ToNextQuestion:    10 * time.Second,
	PerQuestion:       45 * time.Second,
	ToFirstHint:       15 * time.Second,
	ToSecondHint:      15 * time.Second,
	ToSecondHintShort: 10 * time.Second,
	ShortAnswerCutoff: 5,
}

func newTestSession(t *testing.T, chatID int64) (*Session, *Registry, *fakeScheduler, *fakePublisher) {
	t.Helper()
	sched := newFakeScheduler()
	reg := NewRegistry(sched)
	pub := &fakePublisher{}
	sess, err := reg.Create(chatID, SessionParams{
		Mode:      "anagram",
		Timings:   testTimings,
		Publisher: pub,
	})
	require.NoError(t, err)
	return sess, reg, sched, pub
}

func twoQuestions() []Question {
	return []Question{
		{
			Answer: "cat",
			Prompt: "tac",
			Hints: []Hint{
				{Name: "First letter", Value: "c"},
				{Name: "Definition", Value: "a small domesticated feline"},
			},
		},
		{
			Answer: "dog",
			Prompt: "gdo",
			Hints: []Hint{
				{Name: "First letter", Value: "d"},
			},
		},
	}
}

func TestStartSchedulesFirstQuestion(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)

	require.NoError(t, sess.Start(twoQuestions()))

	pending := sched.pending(1)
	require.Len(t, pending, 1)
	assert.Equal(t, KindAsk, pending[0].kind)
	assert.Equal(t, testTimings.ToFirstQuestion, pending[0].delay)
	assert.Empty(t, pub.questions)
}

func TestStartTwiceFails(t *testing.T) {
	sess, _, _, _ := newTestSession(t, 1)

	require.NoError(t, sess.Start(twoQuestions()))
	assert.ErrorIs(t, sess.Start(twoQuestions()), ErrNotStartable)
}

func TestAskQuestionOpensQuestionAndArmsTimers(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))

	sched.fire(t, 1, KindAsk)

	require.Equal(t, []string{"1:tac"}, pub.questions)

	pending := sched.pending(1)
	require.Len(t, pending, 2)
	kinds := []ActionKind{pending[0].kind, pending[1].kind}
	assert.Contains(t, kinds, KindReveal)
	assert.Contains(t, kinds, KindHint)
	assert.Equal(t, StatusInProgress, sess.Status())
}

func TestMessagesBeforeStartAreIgnored(t *testing.T) {
	sess, _, _, pub := newTestSession(t, 1)

	assert.False(t, sess.HandleMessage(User{ID: 7, Name: "alice"}, "cat"))
	assert.Empty(t, pub.corrects)
}

func TestCorrectAnswerCancelsTimersAndSchedulesNext(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)

	ok := sess.HandleMessage(User{ID: 7, Name: "alice"}, "CaT")
	assert.True(t, ok)
	assert.Equal(t, []string{"cat"}, pub.corrects)

	// Exactly the reveal and hint were cancelled; exactly one next-question
	// action remains.
	pending := sched.pending(1)
	require.Len(t, pending, 1)
	assert.Equal(t, KindAsk, pending[0].kind)
	assert.Equal(t, testTimings.ToNextQuestion, pending[0].delay)
}

func TestWrongAnswerChangesNothing(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)

	assert.False(t, sess.HandleMessage(User{ID: 7, Name: "alice"}, "dog"))
	assert.Empty(t, pub.corrects)
	assert.Len(t, sched.pending(1), 2)
}

func TestSecondAnswerLosesRace(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)

	assert.True(t, sess.HandleMessage(User{ID: 7, Name: "alice"}, "cat"))
	// The question is closed; the second correct message scores nothing.
	assert.False(t, sess.HandleMessage(User{ID: 8, Name: "bob"}, "cat"))
	assert.Equal(t, []string{"cat"}, pub.corrects)
}

func TestSkipMatchesRevealTimeout(t *testing.T) {
	// Run the same position twice: once skipped, once timed out. The
	// per-question end state must be identical except for the reason.
	runTo := func(t *testing.T, chatID int64) (*Session, *fakeScheduler, *fakePublisher) {
		sess, _, sched, pub := newTestSession(t, chatID)
		require.NoError(t, sess.Start(twoQuestions()))
		sched.fire(t, chatID, KindAsk)
		return sess, sched, pub
	}

	skipped, skippedSched, skippedPub := runTo(t, 1)
	require.NoError(t, skipped.Skip())

	timed, timedSched, timedPub := runTo(t, 2)
	assert.Equal(t, StatusInProgress, timed.Status())
	timedSched.fire(t, 2, KindReveal)

	assert.Equal(t, []string{"cat/" + ReasonSkipped}, skippedPub.reveals)
	assert.Equal(t, []string{"cat/" + ReasonTimeUp}, timedPub.reveals)

	for chatID, sched := range map[int64]*fakeScheduler{1: skippedSched, 2: timedSched} {
		pending := sched.pending(chatID)
		require.Len(t, pending, 1, "chat %d", chatID)
		assert.Equal(t, KindAsk, pending[0].kind)
	}

	// No one scored in either case.
	assert.Empty(t, skippedPub.corrects)
	assert.Empty(t, timedPub.corrects)
}

func TestSkipWithoutOpenQuestion(t *testing.T) {
	sess, _, _, _ := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))

	// No question asked yet.
	assert.ErrorIs(t, sess.Skip(), ErrNoOpenQuestion)
}

func TestHintTiersAndExhaustion(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)

	// First tier fires and reschedules the second.
	sched.fire(t, 1, KindHint)
	require.Len(t, pub.hints, 1)
	assert.Equal(t, "First letter", pub.hints[0].Name)

	// "cat" is at most ShortAnswerCutoff letters, so the next tick uses the
	// short-word delay.
	var hintDelays []time.Duration
	for _, task := range sched.pending(1) {
		if task.kind == KindHint {
			hintDelays = append(hintDelays, task.delay)
		}
	}
	require.Len(t, hintDelays, 1)
	assert.Equal(t, testTimings.ToSecondHintShort, hintDelays[0])

	// Second tier fires and, with the tiers exhausted, does not reschedule.
	sched.fire(t, 1, KindHint)
	require.Len(t, pub.hints, 2)
	for _, task := range sched.pending(1) {
		assert.NotEqual(t, KindHint, task.kind)
	}
}

func TestHintAfterAnswerIsNoOp(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)

	// Grab the armed hint before the answer closes the question, then run it
	// as an in-flight timer would.
	var hint *fakeTask
	for _, task := range sched.pending(1) {
		if task.kind == KindHint {
			hint = task
		}
	}
	require.NotNil(t, hint)

	assert.True(t, sess.HandleMessage(User{ID: 7, Name: "alice"}, "cat"))
	hint.fn()

	assert.Empty(t, pub.hints)
}

func TestRevealAfterAnswerIsNoOp(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)

	var reveal *fakeTask
	for _, task := range sched.pending(1) {
		if task.kind == KindReveal {
			reveal = task
		}
	}
	require.NotNil(t, reveal)

	assert.True(t, sess.HandleMessage(User{ID: 7, Name: "alice"}, "cat"))
	reveal.fn()

	assert.Empty(t, pub.reveals)
}

func TestStopEndsGameAndPublishesScores(t *testing.T) {
	sess, reg, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)
	require.True(t, sess.HandleMessage(User{ID: 7, Name: "alice"}, "cat"))

	require.NoError(t, sess.Stop())

	assert.Equal(t, StatusEnded, sess.Status())
	assert.Equal(t, 0, reg.Count())
	require.Len(t, pub.scores, 1)
	assert.True(t, pub.scores[0].gameEnded)
	assert.Equal(t, 1, pub.scores[0].questions)
	// The question was already answered, so stop reveals nothing.
	assert.Empty(t, pub.reveals)
	assert.Empty(t, sched.pending(1))

	// Second stop: the game is already gone.
	assert.ErrorIs(t, sess.Stop(), ErrNoGame)
	require.Len(t, pub.scores, 1)
}

func TestStopBeforeFirstQuestionPublishesNoScores(t *testing.T) {
	sess, reg, _, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))

	require.NoError(t, sess.Stop())
	assert.Empty(t, pub.scores)
	assert.Equal(t, 0, reg.Count())
}

func TestActionAfterStopIsNoOp(t *testing.T) {
	sess, _, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)

	var inflight []*fakeTask
	inflight = append(inflight, sched.pending(1)...)
	require.NoError(t, sess.Stop())

	// Stop itself disclosed the open question; the in-flight actions must
	// not add anything.
	require.Equal(t, []string{"cat/" + ReasonStopped}, pub.reveals)
	for _, task := range inflight {
		task.fn()
	}
	assert.Equal(t, []string{"cat/" + ReasonStopped}, pub.reveals)
	assert.Empty(t, pub.hints)
}

func TestEndToEndGame(t *testing.T) {
	sess, reg, sched, pub := newTestSession(t, 1)
	alice := User{ID: 7, Name: "alice"}

	require.NoError(t, sess.Start(twoQuestions()))

	// Question 1 asked, alice answers.
	sched.fire(t, 1, KindAsk)
	require.Equal(t, []string{"1:tac"}, pub.questions)
	require.True(t, sess.HandleMessage(alice, "cat"))

	// Question 2 asked, nobody answers, the reveal times out, the queue is
	// empty and the game ends.
	sched.fire(t, 1, KindAsk)
	require.Equal(t, []string{"1:tac", "2:gdo"}, pub.questions)
	sched.fire(t, 1, KindReveal)

	assert.Equal(t, []string{"dog/" + ReasonTimeUp}, pub.reveals)
	assert.Equal(t, StatusEnded, sess.Status())
	assert.Equal(t, 0, reg.Count())

	require.Len(t, pub.scores, 1)
	final := pub.scores[0]
	assert.True(t, final.gameEnded)
	assert.Equal(t, 2, final.questions)
	require.Len(t, final.standings, 1)
	assert.Equal(t, alice, final.standings[0].User)
	assert.Equal(t, 1, final.standings[0].Points)
	assert.InDelta(t, 50.00, Percentage(final.standings[0].Points, final.questions), 0.001)

	assert.Empty(t, sched.pending(1))
}

func TestPublishScoresMidGame(t *testing.T) {
	sess, reg, sched, pub := newTestSession(t, 1)
	require.NoError(t, sess.Start(twoQuestions()))
	sched.fire(t, 1, KindAsk)
	require.True(t, sess.HandleMessage(User{ID: 7, Name: "alice"}, "cat"))

	sess.PublishScores()

	require.Len(t, pub.scores, 1)
	assert.False(t, pub.scores[0].gameEnded)
	assert.Equal(t, 1, pub.scores[0].questions)
	assert.Equal(t, 1, reg.Count())
	assert.Equal(t, StatusInProgress, sess.Status())
}

// fakeSink records result deliveries.
type fakeSink struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (s *fakeSink) GameFinished(chatID int64, mode string, standings []Score, questions int) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	close(s.done)
}

func TestResultsDeliveredOnGameEnd(t *testing.T) {
	sched := newFakeScheduler()
	reg := NewRegistry(sched)
	pub := &fakePublisher{}
	sink := &fakeSink{done: make(chan struct{})}

	sess, err := reg.Create(1, SessionParams{
		Mode:      "anagram",
		Timings:   testTimings,
		Publisher: pub,
		Results:   sink,
	})
	require.NoError(t, err)

	require.NoError(t, sess.Start(twoQuestions()[:1]))
	sched.fire(t, 1, KindAsk)
	require.True(t, sess.HandleMessage(User{ID: 7, Name: "alice"}, "cat"))

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("result sink was not invoked")
	}
}
