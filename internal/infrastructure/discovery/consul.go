package discovery

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/consul/api"
)

type ServiceConfig struct {
	Name string
	ID   string
	// BaseURL is the address other services use to reach this one, e.g. http://10.0.0.4:8080.
	BaseURL string
	Tags    []string
}

// Registrar registers the service with a Consul agent and an HTTP health check.
type Registrar struct {
	client *api.Client
}

func NewRegistrar(addr string) (*Registrar, error) {
	cfg := api.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: consul client: %w", err)
	}
	return &Registrar{client: client}, nil
}

func (r *Registrar) Register(cfg ServiceConfig) error {
	reg, err := registration(cfg)
	if err != nil {
		return err
	}
	if err := r.client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("discovery: register %s: %w", cfg.ID, err)
	}
	return nil
}

func (r *Registrar) Deregister(serviceID string) error {
	if err := r.client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("discovery: deregister %s: %w", serviceID, err)
	}
	return nil
}

func registration(cfg ServiceConfig) (*api.AgentServiceRegistration, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("discovery: invalid base url %q", cfg.BaseURL)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		host, portStr = u.Host, "80"
		if u.Scheme == "https" {
			portStr = "443"
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid port in %q", cfg.BaseURL)
	}

	return &api.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Address: host,
		Port:    port,
		Tags:    cfg.Tags,
		Check: &api.AgentServiceCheck{
			HTTP:                           u.Scheme + "://" + u.Host + "/health",
			Interval:                       (10 * time.Second).String(),
			Timeout:                        (5 * time.Second).String(),
			DeregisterCriticalServiceAfter: (30 * time.Second).String(),
		},
	}, nil
}
