package mdns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

type fakeBrowser struct {
	entries []*zeroconf.ServiceEntry
}

func (f *fakeBrowser) Browse(ctx context.Context, service, domain string, out chan<- *zeroconf.ServiceEntry) error {
	if service != Service || domain != Domain {
		return errors.New("unexpected service")
	}
	go func() {
		for _, e := range f.entries {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func entry(port int, ips []net.IP, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry("FrontDesk", Service, Domain)
	e.Port = port
	e.AddrIPv4 = ips
	e.Text = txt
	return e
}

func TestDiscoverSkipsUnusableEntries(t *testing.T) {
	b := &fakeBrowser{entries: []*zeroconf.ServiceEntry{
		entry(8080, nil),
		entry(9090, []net.IP{net.ParseIP("192.168.1.20")}, "path=/signal", "version=1"),
	}}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	url, err := Discover(ctx, b)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if url != "ws://192.168.1.20:9090/signal" {
		t.Fatalf("url = %s", url)
	}
}

func TestDiscoverDefaultPath(t *testing.T) {
	e := zeroconf.NewServiceEntry("FrontDesk", Service, Domain)
	e.Port = 8080
	e.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	url, ok := entryURL(e)
	if !ok || url != "ws://[fe80::1]:8080/api/ws/signal" {
		t.Fatalf("url = %s, %v", url, ok)
	}
}

func TestDiscoverTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := Discover(ctx, &fakeBrowser{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
