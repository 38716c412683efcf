package browserproxy_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danbao/testring-sub000/internal/application/browserproxy"
	domainbrowser "github.com/danbao/testring-sub000/internal/domain/browser"
)

type orderingDriver struct {
	mu     sync.Mutex
	order  []string
	inside int32
}

func (d *orderingDriver) Execute(ctx context.Context, cmd domainbrowser.Command) domainbrowser.Result {
	if atomic.AddInt32(&d.inside, 1) > 1 {
		panic("concurrent Execute for the same applicant")
	}
	defer atomic.AddInt32(&d.inside, -1)

	d.mu.Lock()
	d.order = append(d.order, cmd.Method)
	d.mu.Unlock()
	time.Sleep(time.Millisecond)
	return domainbrowser.Result{Value: cmd.Method}
}

func (d *orderingDriver) End(ctx context.Context, applicant domainbrowser.ApplicantID) error { return nil }
func (d *orderingDriver) Kill(ctx context.Context) error                                     { return nil }

func TestController_SerializesCommandsPerApplicant(t *testing.T) {
	driver := &orderingDriver{}
	c := browserproxy.New(driver, 4)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Request(context.Background(), "w1", domainbrowser.Command{Applicant: "a1", Method: "click"})
		}(i)
	}
	wg.Wait()

	assert.Len(t, driver.order, 10)
}

func TestController_DialogQueueAcceptsFirstDismissesRest(t *testing.T) {
	driver := &dialogDriver{}
	c := browserproxy.New(driver, 2)

	res := c.Request(context.Background(), "w1", domainbrowser.Command{Applicant: "a1", Method: "open"})
	require.Nil(t, res.Err)

	session, ok := c.Session("a1")
	require.True(t, ok)

	d1 := session.Dialogs.Push(domainbrowser.Dialog{Type: "alert", Text: "first"})
	d2 := session.Dialogs.Push(domainbrowser.Dialog{Type: "alert", Text: "second"})

	assert.Equal(t, "accept", d1.Result)
	assert.Equal(t, "dismiss", d2.Result)
}

type dialogDriver struct{}

func (dialogDriver) Execute(ctx context.Context, cmd domainbrowser.Command) domainbrowser.Result {
	return domainbrowser.Result{}
}
func (dialogDriver) End(ctx context.Context, applicant domainbrowser.ApplicantID) error { return nil }
func (dialogDriver) Kill(ctx context.Context) error                                     { return nil }

type endTrackingDriver struct {
	mu    sync.Mutex
	ended []domainbrowser.ApplicantID
}

func (d *endTrackingDriver) Execute(ctx context.Context, cmd domainbrowser.Command) domainbrowser.Result {
	return domainbrowser.Result{}
}

func (d *endTrackingDriver) End(ctx context.Context, applicant domainbrowser.ApplicantID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ended = append(d.ended, applicant)
	return nil
}

func (d *endTrackingDriver) Kill(ctx context.Context) error { return nil }

func TestController_WorkerDisconnectedEndsOnlyThatWorkersApplicants(t *testing.T) {
	driver := &endTrackingDriver{}
	c := browserproxy.New(driver, 4)
	ctx := context.Background()

	c.Request(ctx, "w1", domainbrowser.Command{Applicant: "a1", Method: "open"})
	c.Request(ctx, "w1", domainbrowser.Command{Applicant: "a2", Method: "open"})
	c.Request(ctx, "w2", domainbrowser.Command{Applicant: "b1", Method: "open"})

	c.WorkerDisconnected(ctx, "w1")

	assert.ElementsMatch(t, []domainbrowser.ApplicantID{"a1", "a2"}, driver.ended)

	_, ok := c.Session("a1")
	assert.False(t, ok, "a1's session should be gone after its worker disconnected")
	_, ok = c.Session("a2")
	assert.False(t, ok, "a2's session should be gone after its worker disconnected")

	_, ok = c.Session("b1")
	assert.True(t, ok, "b1's session belongs to a different worker and must survive")
}
