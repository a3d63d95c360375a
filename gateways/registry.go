package gateways

import (
	"fmt"
	"sync"

	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/models"
)

// Config carries every rail's credentials. It is assembled once in main from
// the environment; NewRegistry rejects it if any enabled rail is missing
// credentials, so a misconfigured provider surfaces at start-up instead of
// on the first customer request.
type Config struct {
	Mpesa  MpesaConfig
	Airtel AirtelConfig
	Card   CardConfig
}

type Registry struct {
	cfg Config

	mu       sync.Mutex
	adapters map[models.PaymentMethod]Adapter
}

func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Mpesa.APIKey == "" || cfg.Mpesa.APISecret == "" || cfg.Mpesa.ShortCode == "" || cfg.Mpesa.WebhookSecret == "" {
		return nil, apperr.ConfigErr("mpesa gateway credentials are not configured")
	}
	if cfg.Airtel.ClientID == "" || cfg.Airtel.ClientSecret == "" || cfg.Airtel.WebhookSecret == "" {
		return nil, apperr.ConfigErr("airtel gateway credentials are not configured")
	}
	if cfg.Card.SecretKey == "" || cfg.Card.WebhookSecret == "" {
		return nil, apperr.ConfigErr("card gateway credentials are not configured")
	}
	return &Registry{
		cfg:      cfg,
		adapters: make(map[models.PaymentMethod]Adapter),
	}, nil
}

// Resolve returns the singleton adapter for a payment method, constructing
// it on first use.
func (r *Registry) Resolve(method models.PaymentMethod) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[method]; ok {
		return a, nil
	}

	var (
		a   Adapter
		err error
	)
	switch method {
	case models.MethodMpesa:
		a, err = NewMpesaAdapter(r.cfg.Mpesa)
	case models.MethodAirtel:
		a, err = NewAirtelAdapter(r.cfg.Airtel)
	case models.MethodCard:
		a, err = NewCardAdapter(r.cfg.Card)
	case models.MethodCash:
		a = NewCashAdapter()
	default:
		return nil, apperr.ValidationErr(fmt.Sprintf("unsupported payment method: %s", method))
	}
	if err != nil {
		return nil, err
	}

	r.adapters[method] = a
	return a, nil
}

// ResolveGateway maps an inbound webhook gateway identifier to its adapter.
func (r *Registry) ResolveGateway(gateway string) (Adapter, error) {
	switch gateway {
	case "mpesa":
		return r.Resolve(models.MethodMpesa)
	case "airtel":
		return r.Resolve(models.MethodAirtel)
	case "card":
		return r.Resolve(models.MethodCard)
	}
	return nil, apperr.NotFoundErr(fmt.Sprintf("unknown gateway: %s", gateway))
}
