package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_whiteboard._tcp"

var ErrInvalidPort = errors.New("invalid port")

// Entry is a whiteboard server found on the local network.
type Entry struct {
	Instance string
	Addr     string
	Info     []string
}

// Advertise announces a server listening on port. Shut the returned server
// down to stop advertising.
func Advertise(instance string, port int, info ...string) (*mdns.Server, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	if len(info) == 0 {
		info = []string{"whiteboard"}
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}

	return server, nil
}

// Browse queries the local network for timeout and calls found once per
// usable answer. It returns when the query finishes or ctx is done.
func Browse(ctx context.Context, timeout time.Duration, found func(Entry)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range entries {
			if entry, ok := toEntry(e); ok {
				found(entry)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	errCh := make(chan error, 1)
	go func() {
		errCh <- mdns.Query(params)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
		// Query still owns the channel until it returns.
		go func() {
			<-errCh
			close(entries)
		}()
		return err
	}

	close(entries)
	<-done

	return err
}

func toEntry(e *mdns.ServiceEntry) (Entry, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Entry{}, false
	}

	instance := strings.TrimSuffix(e.Name, "."+ServiceType+".local.")

	return Entry{
		Instance: instance,
		Addr:     fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port),
		Info:     e.InfoFields,
	}, true
}
