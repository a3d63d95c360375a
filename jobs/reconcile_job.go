package jobs

import (
	"context"
	"log"
	"time"

	"github.com/wanjalasam/bus_booking/models"
	"github.com/wanjalasam/bus_booking/services"
)

// ReconcileJob sweeps payments stuck in PENDING and polls the gateway
// for their real outcome. Webhooks are the fast path; this is the
// safety net for the ones that never arrive.
type ReconcileJob struct {
	store    services.Store
	payments *services.PaymentService
	minAge   time.Duration
}

func NewReconcileJob(store services.Store, payments *services.PaymentService) *ReconcileJob {
	return &ReconcileJob{store: store, payments: payments, minAge: 2 * time.Minute}
}

func (j *ReconcileJob) SweepPendingPayments() {
	log.Println("Running job: SweepPendingPayments...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stale, err := j.store.ListStalePendingPayments(ctx, time.Now().Add(-j.minAge))
	if err != nil {
		log.Printf("Error listing stale pending payments: %v", err)
		return
	}
	if len(stale) == 0 {
		log.Println("No stale pending payments found.")
		return
	}

	var resolved int
	for _, payment := range stale {
		// Cash waits for a staff confirmation, not a gateway.
		if payment.Method == models.MethodCash {
			continue
		}
		updated, err := j.payments.PollStatus(ctx, payment.ID)
		if err != nil {
			log.Printf("Error polling payment %s: %v", payment.ID, err)
			continue
		}
		if updated.Status != models.PaymentPending {
			resolved++
		}
	}

	log.Printf("Swept %d stale payment(s), %d resolved.", len(stale), resolved)
}
