package engine_test

import (
	"testing"

	"github.com/1ay1/neowall-sub002/internal/engine"
)

func TestBrokerPublishReachesSubscribers(t *testing.T) {
	b := engine.NewChangeBroker()

	ch1, cancel1 := b.Subscribe("DP-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("DP-1")
	defer cancel2()

	b.Publish("DP-1", "/walls/a.png")

	for i, ch := range []<-chan string{ch1, ch2} {
		select {
		case got := <-ch:
			if got != "/walls/a.png" {
				t.Errorf("subscriber %d got %q", i, got)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestBrokerTopicsAreIndependent(t *testing.T) {
	b := engine.NewChangeBroker()

	ch, cancel := b.Subscribe("DP-1")
	defer cancel()

	b.Publish("HDMI-A-1", "/walls/a.png")

	select {
	case got := <-ch:
		t.Errorf("received %q published to another output", got)
	default:
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewChangeBroker()

	ch, cancel := b.Subscribe("DP-1")
	cancel()
	b.Publish("DP-1", "/walls/a.png")

	select {
	case got, ok := <-ch:
		if ok {
			t.Errorf("received %q after unsubscribe", got)
		}
	default:
	}
}

func TestBrokerCloseSignalsSubscribers(t *testing.T) {
	b := engine.NewChangeBroker()

	ch, cancel := b.Subscribe("DP-1")
	defer cancel()

	b.Close("DP-1")

	if _, ok := <-ch; ok {
		t.Error("channel still open after Close")
	}

	// Late subscribers to an unplugged output get a closed channel.
	late, _ := b.Subscribe("DP-1")
	if _, ok := <-late; ok {
		t.Error("late subscriber channel open after Close")
	}
}

func TestBrokerReopenAfterReplug(t *testing.T) {
	b := engine.NewChangeBroker()
	b.Close("DP-1")
	b.Reopen("DP-1")

	ch, cancel := b.Subscribe("DP-1")
	defer cancel()
	b.Publish("DP-1", "/walls/b.png")

	select {
	case got := <-ch:
		if got != "/walls/b.png" {
			t.Errorf("got %q", got)
		}
	default:
		t.Error("no delivery after Reopen")
	}
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	b := engine.NewChangeBroker()

	ch, cancel := b.Subscribe("DP-1")
	defer cancel()

	// Fill well past the buffer; Publish must never block.
	for i := 0; i < 200; i++ {
		b.Publish("DP-1", "/walls/a.png")
	}

	n := 0
	for {
		select {
		case <-ch:
			n++
			continue
		default:
		}
		break
	}
	if n == 0 || n > 64 {
		t.Errorf("delivered %d, want between 1 and the buffer size", n)
	}
}
