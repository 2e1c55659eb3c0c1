package fanfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// okStub answers "<name>-ok" for every descriptor.
var okStub = FetcherFunc(func(_ context.Context, d Descriptor) ([]byte, error) {
	return []byte(d.Name() + "-ok"), nil
})

func stubDescriptors(names ...string) []Descriptor {
	out := make([]Descriptor, len(names))
	for i, n := range names {
		out[i] = MustDescriptor(n, "stub://"+n)
	}
	return out
}

func numberedDescriptors(n int) []Descriptor {
	out := make([]Descriptor, n)
	for i := range out {
		out[i] = MustDescriptor(fmt.Sprintf("req-%d", i), fmt.Sprintf("stub://%d", i))
	}
	return out
}

// mustDispatch runs the package-level Dispatch and fails the test on an
// option error.
func mustDispatch(t *testing.T, ctx context.Context, f Fetcher, descriptors []Descriptor, opts ...Option) Report {
	t.Helper()
	report, err := Dispatch(ctx, f, descriptors, append([]Option{WithLogger(testLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	return report
}

func TestDispatch_ThreeSucceed(t *testing.T) {
	report := mustDispatch(t, context.Background(), okStub, stubDescriptors("a", "b", "c"))

	if report.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", report.Len())
	}
	if !report.OK() {
		t.Error("OK() = false, want true")
	}
	if report.RunID() == "" {
		t.Error("RunID() is empty")
	}
	for i, want := range []string{"a-ok", "b-ok", "c-ok"} {
		s, ok := report.At(i).Success()
		if !ok {
			t.Fatalf("outcome %d is not a success", i)
		}
		if string(s.Payload) != want {
			t.Errorf("outcome %d payload = %q, want %q", i, s.Payload, want)
		}
		if s.Index != i {
			t.Errorf("outcome %d Index = %d", i, s.Index)
		}
		if got := report.At(i).RunID(); got != report.RunID() {
			t.Errorf("outcome %d RunID = %s, want %s", i, got, report.RunID())
		}
	}
}

func TestDispatch_OneFailureIsIsolated(t *testing.T) {
	boom := errors.New("connection reset")
	stub := FetcherFunc(func(_ context.Context, d Descriptor) ([]byte, error) {
		if d.Name() == "y" {
			return nil, boom
		}
		return []byte(d.Name() + "-ok"), nil
	})

	report := mustDispatch(t, context.Background(), stub, stubDescriptors("x", "y"))

	if report.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", report.Len())
	}
	if report.OK() {
		t.Error("OK() = true with one failure")
	}

	s, ok := report.At(0).Success()
	if !ok {
		t.Fatal("outcome 0 is not a success")
	}
	if string(s.Payload) != "x-ok" {
		t.Errorf("payload = %q, want x-ok", s.Payload)
	}

	f, ok := report.At(1).Failure()
	if !ok {
		t.Fatal("outcome 1 is not a failure")
	}
	if f.Kind != TransportError {
		t.Errorf("Kind = %v, want TransportError", f.Kind)
	}
	if !errors.Is(f.Err, boom) {
		t.Errorf("Err = %v, want %v", f.Err, boom)
	}
	if !f.Attempted {
		t.Error("Attempted = false, want true")
	}
	if f.Source.Name() != "y" {
		t.Errorf("Source = %s, want y", f.Source.Name())
	}

	if n := len(report.Successes()); n != 1 {
		t.Errorf("len(Successes()) = %d, want 1", n)
	}
	if n := len(report.Failures()); n != 1 {
		t.Errorf("len(Failures()) = %d, want 1", n)
	}
}

func TestDispatch_ReportLengthMatchesInput(t *testing.T) {
	for _, n := range []int{0, 1, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			report := mustDispatch(t, context.Background(), okStub, numberedDescriptors(n))
			if report.Len() != n {
				t.Fatalf("Len() = %d, want %d", report.Len(), n)
			}
			for i, o := range report.Outcomes() {
				if o.Index() != i {
					t.Errorf("outcome %d Index = %d", i, o.Index())
				}
				if want := fmt.Sprintf("req-%d", i); o.Source().Name() != want {
					t.Errorf("outcome %d source = %s, want %s", i, o.Source().Name(), want)
				}
			}
		})
	}
}

func TestDispatch_EmptyIsOK(t *testing.T) {
	report := mustDispatch(t, context.Background(), okStub, nil)

	if report.Len() != 0 {
		t.Errorf("Len() = %d, want 0", report.Len())
	}
	if !report.OK() {
		t.Error("OK() = false for an empty run")
	}
	if len(report.Outcomes()) != 0 {
		t.Errorf("Outcomes() = %v, want empty", report.Outcomes())
	}
}

func TestDispatch_NegativeCapacity(t *testing.T) {
	_, err := Dispatch(context.Background(), okStub, stubDescriptors("a"), WithCapacity(-2))
	if !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("Dispatch() error = %v, want ErrInvalidCapacity", err)
	}
}

func TestDispatch_CapacityBoundsInFlight(t *testing.T) {
	const k = 3
	var inFlight, peak atomic.Int32
	stub := FetcherFunc(func(ctx context.Context, d Descriptor) ([]byte, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return []byte("ok"), nil
	})

	report := mustDispatch(t, context.Background(), stub, numberedDescriptors(40), WithCapacity(k))

	if report.Len() != 40 {
		t.Errorf("Len() = %d, want 40", report.Len())
	}
	if !report.OK() {
		t.Error("OK() = false, want true")
	}
	if p := peak.Load(); p > k {
		t.Errorf("peak in-flight = %d, want <= %d", p, k)
	}
}

func TestDispatch_Idempotent(t *testing.T) {
	d, err := New(WithFetcher(okStub), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	descriptors := stubDescriptors("a", "b", "c", "d")
	first := d.Dispatch(context.Background(), descriptors)
	second := d.Dispatch(context.Background(), descriptors)

	if first.Len() != second.Len() {
		t.Fatalf("Len() differs: %d vs %d", first.Len(), second.Len())
	}
	if first.RunID() == second.RunID() {
		t.Errorf("both runs have RunID %s", first.RunID())
	}
	for i := 0; i < first.Len(); i++ {
		a, _ := first.At(i).Success()
		b, _ := second.At(i).Success()
		if !bytes.Equal(a.Payload, b.Payload) {
			t.Errorf("outcome %d payload %q vs %q", i, a.Payload, b.Payload)
		}
		if a.Source.Name() != b.Source.Name() {
			t.Errorf("outcome %d source %s vs %s", i, a.Source.Name(), b.Source.Name())
		}
	}
}

func TestDispatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	stub := FetcherFunc(func(ctx context.Context, d Descriptor) ([]byte, error) {
		calls.Add(1)
		return nil, ctx.Err()
	})

	report := mustDispatch(t, ctx, stub, stubDescriptors("a", "b", "c"), WithCapacity(1))

	if report.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", report.Len())
	}
	failures := report.Failures()
	if len(failures) != 3 {
		t.Fatalf("len(Failures()) = %d, want 3", len(failures))
	}
	for _, f := range failures {
		if f.Kind != Cancelled {
			t.Errorf("%s: Kind = %v, want Cancelled", f.Source.Name(), f.Kind)
		}
		if f.Attempted {
			t.Errorf("%s: Attempted = true", f.Source.Name())
		}
		if !errors.Is(f.Err, ErrNotAttempted) {
			t.Errorf("%s: Err = %v, want ErrNotAttempted", f.Source.Name(), f.Err)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("fetcher called %d times, want 0", n)
	}
}

func TestDispatch_CancelDuringFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fastDone := make(chan struct{})
	started := make(chan struct{})

	stub := FetcherFunc(func(ctx context.Context, d Descriptor) ([]byte, error) {
		if d.Name() == "fast" {
			defer close(fastDone)
			return []byte("done"), nil
		}
		// cancel only once the fast request has finished
		<-fastDone
		close(started)
		<-ctx.Done()
		return nil, fmt.Errorf("waiting on %s: %w", d.Name(), ctx.Err())
	})

	go func() {
		<-started
		cancel()
	}()

	report := mustDispatch(t, ctx, stub, stubDescriptors("fast", "slow"))

	if !report.At(0).IsSuccess() {
		t.Error("fast request did not succeed")
	}
	f, ok := report.At(1).Failure()
	if !ok {
		t.Fatal("slow request is not a failure")
	}
	if f.Kind != Cancelled {
		t.Errorf("Kind = %v, want Cancelled", f.Kind)
	}
	if !f.Attempted {
		t.Error("Attempted = false, want true")
	}
	if !errors.Is(f.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", f.Err)
	}
}

func TestDispatch_PerRequestTimeout(t *testing.T) {
	stub := FetcherFunc(func(ctx context.Context, d Descriptor) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	descriptors := []Descriptor{MustDescriptor("slow", "stub://slow", WithTimeout(20*time.Millisecond))}

	report := mustDispatch(t, context.Background(), stub, descriptors)

	f, ok := report.At(0).Failure()
	if !ok {
		t.Fatal("timed out request is not a failure")
	}
	if f.Kind != TransportError {
		t.Errorf("Kind = %v, want TransportError", f.Kind)
	}
	if !errors.Is(f.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want context.DeadlineExceeded", f.Err)
	}
}

func TestDispatch_FetcherPanic(t *testing.T) {
	stub := FetcherFunc(func(_ context.Context, d Descriptor) ([]byte, error) {
		if d.Name() == "bad" {
			panic("nil map write")
		}
		return []byte("ok"), nil
	})

	report := mustDispatch(t, context.Background(), stub, stubDescriptors("good", "bad"))

	if !report.At(0).IsSuccess() {
		t.Error("good request did not succeed")
	}
	f, ok := report.At(1).Failure()
	if !ok {
		t.Fatal("panicking request is not a failure")
	}
	if f.Kind != TransportError {
		t.Errorf("Kind = %v, want TransportError", f.Kind)
	}
	if !errors.Is(f.Err, ErrFetcherPanic) {
		t.Errorf("Err = %v, want ErrFetcherPanic", f.Err)
	}
}

func TestDispatch_HTTPFetcher(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("item:" + r.URL.Path))
	}))
	defer ts.Close()

	d, err := New(WithCapacity(2), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer d.Close()

	report := d.Dispatch(context.Background(), []Descriptor{
		MustDescriptor("one", ts.URL+"/1"),
		MustDescriptor("missing", ts.URL+"/missing"),
		MustDescriptor("two", ts.URL+"/2"),
	})

	if report.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", report.Len())
	}

	one, ok := report.Lookup("one")
	if !ok {
		t.Fatal("Lookup(one) found nothing")
	}
	s, ok := one.Success()
	if !ok {
		t.Fatal("one is not a success")
	}
	if string(s.Payload) != "item:/1" {
		t.Errorf("payload = %q, want item:/1", s.Payload)
	}

	missing, ok := report.Lookup("missing")
	if !ok {
		t.Fatal("Lookup(missing) found nothing")
	}
	f, ok := missing.Failure()
	if !ok {
		t.Fatal("missing is not a failure")
	}
	if f.Kind != TransportError {
		t.Errorf("Kind = %v, want TransportError", f.Kind)
	}
	var statusErr *StatusError
	if !errors.As(f.Err, &statusErr) {
		t.Fatalf("Err = %v, want *StatusError", f.Err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}

	if _, ok := report.Lookup("absent"); ok {
		t.Error("Lookup(absent) found an outcome")
	}
}

func TestOutcome_MatchAndFold(t *testing.T) {
	stub := FetcherFunc(func(_ context.Context, d Descriptor) ([]byte, error) {
		if d.Name() == "b" {
			return nil, errors.New("nope")
		}
		return []byte("12345"), nil
	})
	report := mustDispatch(t, context.Background(), stub, stubDescriptors("a", "b"))

	var successes, failures int
	for _, o := range report.Outcomes() {
		o.Match(
			func(Success) { successes++ },
			func(Failure) { failures++ },
		)
	}
	if successes != 1 || failures != 1 {
		t.Errorf("Match saw %d successes and %d failures, want 1 and 1", successes, failures)
	}

	sizes := make([]int, report.Len())
	for i, o := range report.Outcomes() {
		sizes[i] = Fold(o,
			func(s Success) int { return len(s.Payload) },
			func(Failure) int { return -1 },
		)
	}
	if want := []int{5, -1}; !slices.Equal(sizes, want) {
		t.Errorf("Fold sizes = %v, want %v", sizes, want)
	}

	// nil handlers are ignored
	report.At(0).Match(nil, nil)
}

func TestReport_OutcomesIsCopy(t *testing.T) {
	report := mustDispatch(t, context.Background(), okStub, stubDescriptors("a", "b"))

	outcomes := report.Outcomes()
	outcomes[0] = outcomes[1]

	if got := report.At(0).Source().Name(); got != "a" {
		t.Errorf("At(0) = %s after editing the copy, want a", got)
	}
}

func TestReport_MarshalJSON(t *testing.T) {
	stub := FetcherFunc(func(_ context.Context, d Descriptor) ([]byte, error) {
		if d.Name() == "y" {
			return nil, errors.New("refused")
		}
		return []byte("abc"), nil
	})
	descriptors := []Descriptor{
		MustDescriptor("x", "stub://x", WithLabels("shard", "a")),
		MustDescriptor("y", "stub://y"),
	}

	report := mustDispatch(t, context.Background(), stub, descriptors)

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded struct {
		RunID    string `json:"run_id"`
		Total    int    `json:"total"`
		Failed   int    `json:"failed"`
		Outcomes []struct {
			Index     int               `json:"index"`
			Name      string            `json:"name"`
			URL       string            `json:"url"`
			Labels    map[string]string `json:"labels"`
			OK        bool              `json:"ok"`
			Kind      string            `json:"kind"`
			Error     string            `json:"error"`
			Attempted bool              `json:"attempted"`
			Bytes     int               `json:"bytes"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	if decoded.RunID != report.RunID() {
		t.Errorf("run_id = %s, want %s", decoded.RunID, report.RunID())
	}
	if decoded.Total != 2 || decoded.Failed != 1 {
		t.Errorf("total/failed = %d/%d, want 2/1", decoded.Total, decoded.Failed)
	}
	if len(decoded.Outcomes) != 2 {
		t.Fatalf("len(outcomes) = %d, want 2", len(decoded.Outcomes))
	}

	x := decoded.Outcomes[0]
	if !x.OK || x.Bytes != 3 || x.Labels["shard"] != "a" || x.Kind != "" {
		t.Errorf("outcome x = %+v", x)
	}

	y := decoded.Outcomes[1]
	if y.OK || y.Kind != "transport_error" || !y.Attempted {
		t.Errorf("outcome y = %+v", y)
	}
	if !strings.Contains(y.Error, "refused") {
		t.Errorf("error = %q, want it to mention refused", y.Error)
	}
}

func TestDispatcher_ConcurrentDispatches(t *testing.T) {
	d, err := New(WithFetcher(okStub), WithCapacity(4), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	const runs = 8
	reports := make(chan Report, runs)
	for i := 0; i < runs; i++ {
		go func() {
			reports <- d.Dispatch(context.Background(), numberedDescriptors(25))
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < runs; i++ {
		r := <-reports
		if r.Len() != 25 {
			t.Errorf("Len() = %d, want 25", r.Len())
		}
		if !r.OK() {
			t.Error("OK() = false, want true")
		}
		if seen[r.RunID()] {
			t.Errorf("run ID %s reused", r.RunID())
		}
		seen[r.RunID()] = true
	}
}
