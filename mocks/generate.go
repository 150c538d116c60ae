package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/quantgate-lab/quantgate/pkg/marketdata/provider Provider
//go:generate mockgen -destination=./mock_venue.go -package=mocks github.com/quantgate-lab/quantgate/internal/execution Venue
//go:generate mockgen -destination=./mock_model.go -package=mocks github.com/quantgate-lab/quantgate/internal/ensemble Model
//go:generate mockgen -destination=./mock_audit_sink.go -package=mocks github.com/quantgate-lab/quantgate/internal/engine AuditSink
