// ABOUTME: mDNS service discovery for bustap network receivers
// ABOUTME: Receivers advertise; taps resolve mdns:<instance> targets and browse
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/sirupsen/logrus"
)

const (
	// ServiceType is the DNS-SD service receivers advertise
	ServiceType = "_bustap._tcp"

	// DefaultPath is the websocket path advertised in the TXT record
	DefaultPath = "/tap"

	// DefaultTimeout bounds one browse or resolve query
	DefaultTimeout = 3 * time.Second

	domain = "local"
)

// ErrNotFound is returned when no receiver answers for an instance name
var ErrNotFound = errors.New("receiver not found")

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string
	Timeout     time.Duration
	Logger      logrus.FieldLogger
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	log    logrus.FieldLogger

	query func(context.Context, *mdns.QueryParam) error
}

// ReceiverInfo describes a discovered receiver
type ReceiverInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the websocket address of the receiver
func (r ReceiverInfo) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(r.Host, fmt.Sprint(r.Port)), r.Path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		query:  mdns.QueryContext,
	}
}

// Advertise announces this receiver via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"name": m.config.ServiceName,
		"port": m.config.Port,
		"type": ServiceType,
	}).Info("Advertising mDNS service")

	go func() {
		<-m.ctx.Done()
		if err := server.Shutdown(); err != nil {
			m.log.WithError(err).Warn("mDNS server shutdown failed")
		}
	}()

	return nil
}

// Browse runs one query and returns every receiver that answered
func (m *Manager) Browse(ctx context.Context) ([]ReceiverInfo, error) {
	var receivers []ReceiverInfo
	err := m.run(ctx, func(entry *mdns.ServiceEntry) bool {
		receivers = append(receivers, receiverFromEntry(entry))
		return false
	})
	return receivers, err
}

// Resolve finds the receiver advertised as instance and returns its
// websocket URL. It satisfies output.Resolver.
func (m *Manager) Resolve(ctx context.Context, instance string) (string, error) {
	var found *ReceiverInfo
	err := m.run(ctx, func(entry *mdns.ServiceEntry) bool {
		if instanceName(entry.Name) != instance {
			return false
		}
		r := receiverFromEntry(entry)
		found = &r
		return true
	})
	if err != nil {
		return "", err
	}
	if found == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, instance)
	}

	m.log.WithFields(logrus.Fields{
		"instance": instance,
		"url":      found.URL(),
	}).Debug("Resolved receiver")
	return found.URL(), nil
}

// run queries for receivers and feeds entries to visit until it returns true
func (m *Manager) run(ctx context.Context, visit func(*mdns.ServiceEntry) bool) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if entry.AddrV4 == nil && entry.AddrV6 == nil {
				continue
			}
			if visit(entry) {
				cancel()
				// keep draining so the query never blocks on a full channel
				for range entries {
				}
				return
			}
		}
	}()

	params := &mdns.QueryParam{
		Service: ServiceType,
		Domain:  domain,
		Timeout: m.config.Timeout,
		Entries: entries,
	}
	params.DisableIPv6 = true

	err := m.query(ctx, params)
	close(entries)
	<-done

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("mdns query: %w", err)
	}
	return nil
}

// Stop stops advertising
func (m *Manager) Stop() {
	m.cancel()
}

func receiverFromEntry(entry *mdns.ServiceEntry) ReceiverInfo {
	host := ""
	if entry.AddrV4 != nil {
		host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		host = entry.AddrV6.String()
	}

	path := DefaultPath
	for _, field := range entry.InfoFields {
		if p, ok := strings.CutPrefix(field, "path="); ok && p != "" {
			path = p
		}
	}

	return ReceiverInfo{
		Name: instanceName(entry.Name),
		Host: host,
		Port: entry.Port,
		Path: path,
	}
}

// instanceName strips the service and domain from a full instance name
func instanceName(full string) string {
	name := strings.TrimSuffix(full, ".")
	name = strings.TrimSuffix(name, "."+ServiceType+"."+domain)
	return strings.ReplaceAll(name, `\ `, " ")
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
