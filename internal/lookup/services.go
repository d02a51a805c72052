package lookup

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// ServiceList tries external services in a fixed priority order, bounding
// each attempt with a per-service timeout. A service error moves on to the
// next service; a miss from every service is a miss, not an error.
type ServiceList struct {
	services []*Client
	timeout  time.Duration
}

// NewServiceList creates a ServiceList. Order is priority order.
func NewServiceList(timeout time.Duration, services ...*Client) *ServiceList {
	return &ServiceList{services: services, timeout: timeout}
}

// SearchIdentity asks each service in order for the ticker's identity.
func (sl *ServiceList) SearchIdentity(ctx context.Context, ticker, name string) (*ParsedIdentity, string) {
	for _, svc := range sl.services {
		svcCtx, cancel := context.WithTimeout(ctx, sl.timeout)
		parsed, err := svc.SearchIdentity(svcCtx, ticker, name)
		cancel()
		if err != nil {
			log.Warnf("identity lookup via %s failed for %q: %v", svc.Name(), ticker, err)
			continue
		}
		if parsed != nil {
			return parsed, svc.Name()
		}
	}
	return nil, ""
}

// GetMetadata asks each service in order for an identity's metadata.
func (sl *ServiceList) GetMetadata(ctx context.Context, identity string) (*ParsedMetadata, string) {
	for _, svc := range sl.services {
		svcCtx, cancel := context.WithTimeout(ctx, sl.timeout)
		parsed, err := svc.GetMetadata(svcCtx, identity)
		cancel()
		if err != nil {
			log.Warnf("metadata lookup via %s failed for %q: %v", svc.Name(), identity, err)
			continue
		}
		if parsed != nil {
			return parsed, svc.Name()
		}
	}
	return nil, ""
}

// Empty reports whether no services are configured.
func (sl *ServiceList) Empty() bool {
	return sl == nil || len(sl.services) == 0
}
