// Package importer reconcilia bundles de realms contra el Directory Store.
//
// El realm admin se importa primero; el resto conserva el orden de entrada.
// Cada bundle se commitea en su propia unidad de trabajo, así que un fallo
// (conflicto de nombre, política de passwords) revierte sólo ese bundle.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/lock"
	"github.com/dropDatabas3/realmport/internal/metrics"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm"
	"github.com/dropDatabas3/realmport/internal/realm/credential"
	"github.com/dropDatabas3/realmport/internal/realm/requiredaction"
)

// Outcome es el resultado de un bundle.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeReplaced Outcome = "replaced"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result describe lo que pasó con un bundle.
type Result struct {
	Realm    string        `json:"realm"`
	RealmID  string        `json:"realmId,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Orphans  []string      `json:"orphanedUsers,omitempty"`
	Duration time.Duration `json:"-"`

	Err error `json:"-"`
}

// Report agrupa los resultados de un ImportAll.
type Report struct {
	Results        []Result `json:"results"`
	AdminCommitted bool     `json:"adminRealmCommitted"`
	// Repaired son los realms a los que se les recreó el management client.
	Repaired []string `json:"repairedManagementClients,omitempty"`
}

// Err une los errores fatales de cada bundle (nil si no hubo).
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Count cuenta los resultados con un outcome dado.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

type Options struct {
	// AdminRealm es el realm administrativo. Default "master".
	AdminRealm string
	Codec      *credential.Codec
	Actions    *requiredaction.Preserver
	// Locker es opcional; sin él no hay exclusión entre importers.
	Locker  lock.Locker
	LockTTL time.Duration
}

type Orchestrator struct {
	dir     repository.Directory
	admin   string
	codec   *credential.Codec
	actions *requiredaction.Preserver
	locker  lock.Locker
	lockTTL time.Duration
}

func New(dir repository.Directory, opts Options) *Orchestrator {
	if opts.AdminRealm == "" {
		opts.AdminRealm = "master"
	}
	if opts.Codec == nil {
		opts.Codec = credential.New(credential.Options{})
	}
	if opts.Actions == nil {
		opts.Actions = requiredaction.New(requiredaction.CasePreserve)
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &Orchestrator{
		dir:     dir,
		admin:   opts.AdminRealm,
		codec:   opts.Codec,
		actions: opts.Actions,
		locker:  opts.Locker,
		lockTTL: opts.LockTTL,
	}
}

// Order retorna los bundles con el realm admin primero. El resto mantiene
// el orden de entrada. Si hay varios bundles con el nombre admin, todos
// pasan adelante en su orden relativo.
func Order(bundles []types.RealmBundle, adminRealm string) []types.RealmBundle {
	out := make([]types.RealmBundle, 0, len(bundles))
	for _, b := range bundles {
		if b.Realm == adminRealm {
			out = append(out, b)
		}
	}
	for _, b := range bundles {
		if b.Realm != adminRealm {
			out = append(out, b)
		}
	}
	return out
}

// ImportAll importa los bundles con la estrategia dada. Nunca aborta por el
// fallo de un bundle: el Report trae un Result por bundle y el error
// retornado es la unión de los fallos (nil si todos terminaron bien).
func (o *Orchestrator) ImportAll(ctx context.Context, bundles []types.RealmBundle, strategy types.Strategy) (*Report, error) {
	log := logger.From(ctx).With(logger.Layer("importer"), logger.Op("Orchestrator.ImportAll"), logger.Strategy(strategy.String()))
	ctx = logger.ToContext(ctx, log)

	report := &Report{Results: make([]Result, 0, len(bundles))}
	var interrupted error
	for _, b := range Order(bundles, o.admin) {
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}
		res := o.importOne(ctx, b, strategy)
		metrics.RealmImports.WithLabelValues(string(res.Outcome)).Inc()
		if res.Outcome != OutcomeSkipped {
			metrics.RealmImportDuration.Observe(float64(res.Duration.Milliseconds()))
		}
		if res.Realm == o.admin && (res.Outcome == OutcomeCreated || res.Outcome == OutcomeReplaced) {
			report.AdminCommitted = true
		}
		report.Results = append(report.Results, res)
	}

	errs := []error{report.Err()}
	if report.AdminCommitted {
		// el realm admin ya quedó commiteado: la reparación corre aunque
		// el contexto se haya cancelado.
		repaired, err := o.repairManagementClients(context.WithoutCancel(ctx))
		report.Repaired = repaired
		if err != nil {
			log.Error("management client repair failed", logger.Err(err))
			errs = append(errs, fmt.Errorf("repair management clients: %w", err))
		}
	}
	if interrupted != nil {
		log.Warn("import interrupted", logger.Err(interrupted), logger.Int("pending", len(bundles)-len(report.Results)))
		errs = append(errs, interrupted)
	}

	log.Info("import finished",
		logger.Count(len(report.Results)),
		logger.Int("created", report.Count(OutcomeCreated)),
		logger.Int("replaced", report.Count(OutcomeReplaced)),
		logger.Int("skipped", report.Count(OutcomeSkipped)),
		logger.Int("failed", report.Count(OutcomeFailed)),
	)
	return report, errors.Join(errs...)
}

func (o *Orchestrator) importOne(ctx context.Context, b types.RealmBundle, strategy types.Strategy) (res Result) {
	start := time.Now()
	res = Result{Realm: b.Realm}
	log := logger.From(ctx).With(logger.Realm(b.Realm))
	ctx = logger.ToContext(ctx, log)

	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Outcome = OutcomeFailed
			res.Error = res.Err.Error()
			log.Error("realm import failed", logger.Err(res.Err))
		}
	}()

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, "realm:"+b.Realm, o.lockTTL)
		if errors.Is(err, lock.ErrLocked) {
			res.Err = &realm.RealmNameConflictError{Realm: b.Realm, Err: err}
			return res
		}
		if err != nil {
			res.Err = fmt.Errorf("acquire import lock for %q: %w", b.Realm, err)
			return res
		}
		defer release()
	}

	var outcome Outcome
	var created *repository.Realm
	var orphans []*realm.OrphanedUserRecordError

	err := o.dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		existing, err := tx.FindRealmByName(ctx, b.Realm)
		switch {
		case err == nil:
			switch strategy {
			case types.StrategyIgnoreExisting:
				outcome = OutcomeSkipped
				return nil
			case types.StrategyOverwriteExisting:
				if err := o.deleteExisting(ctx, tx, existing); err != nil {
					return err
				}
				outcome = OutcomeReplaced
			default:
				return &realm.RealmNameConflictError{Realm: b.Realm}
			}
		case repository.IsNotFound(err):
			outcome = OutcomeCreated
		default:
			return fmt.Errorf("find realm %q: %w", b.Realm, err)
		}

		created, orphans, err = o.commit(ctx, tx, &b)
		return err
	})
	if err != nil {
		res.Err = err
		return res
	}

	res.Outcome = outcome
	if outcome == OutcomeSkipped {
		log.Info("realm already exists, skipped")
		return res
	}
	res.RealmID = created.ID
	for _, orphan := range orphans {
		res.Orphans = append(res.Orphans, orphan.UserID)
	}
	log.Info("realm imported", logger.RealmID(created.ID), logger.String("outcome", string(outcome)))
	return res
}

// deleteExisting borra el realm existente. Si es el realm admin primero se
// desprenden las back-references de todos los realms a sus management clients.
func (o *Orchestrator) deleteExisting(ctx context.Context, tx repository.DirectoryTx, existing *repository.Realm) error {
	if existing.Name == o.admin {
		realms, err := tx.ListRealms(ctx)
		if err != nil {
			return fmt.Errorf("list realms: %w", err)
		}
		for _, r := range realms {
			if !r.HasManagementClient() {
				continue
			}
			if err := tx.SetManagementClient(ctx, r.ID, nil); err != nil {
				return fmt.Errorf("detach management client of %q: %w", r.Name, err)
			}
		}
	}
	if err := tx.DeleteRealm(ctx, existing.ID); err != nil {
		return fmt.Errorf("delete realm %q: %w", existing.Name, err)
	}
	logger.From(ctx).Info("existing realm deleted", logger.RealmID(existing.ID))
	return nil
}

// commit: desprender required actions, import estructural, credenciales
// por el codec, reatachar required actions.
func (o *Orchestrator) commit(ctx context.Context, tx repository.DirectoryTx, b *types.RealmBundle) (*repository.Realm, []*realm.OrphanedUserRecordError, error) {
	work := b.Clone()
	for i := range work.Users {
		if work.Users[i].ID == "" {
			work.Users[i].ID = uuid.NewString()
		}
	}

	detached := o.actions.Detach(work)
	creds := make([][]types.CredentialRecord, len(work.Users))
	for i := range work.Users {
		creds[i] = work.Users[i].Credentials
		work.Users[i].Credentials = nil
	}

	created, err := tx.CreateRealm(ctx, work)
	if errors.Is(err, repository.ErrRealmNameTaken) {
		return nil, nil, &realm.RealmNameConflictError{Realm: b.Realm, Err: err}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("import realm %q: %w", b.Realm, err)
	}

	for i := range work.Users {
		if len(creds[i]) == 0 {
			continue
		}
		user, err := tx.FindUserByID(ctx, created.ID, work.Users[i].ID)
		if err != nil {
			return nil, nil, fmt.Errorf("find imported user %q: %w", work.Users[i].Username, err)
		}
		for _, c := range creds[i] {
			if err := o.codec.Decode(ctx, tx, created, user, c); err != nil {
				return nil, nil, err
			}
		}
	}

	orphans, err := o.actions.Reattach(ctx, tx, created, detached)
	if err != nil {
		return nil, nil, err
	}
	return created, orphans, nil
}

// repairManagementClients recrea el management client de cada realm que no
// lo tenga. Sólo corre si el realm admin fue commiteado en esta ejecución.
func (o *Orchestrator) repairManagementClients(ctx context.Context) ([]string, error) {
	var repaired []string
	err := o.dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		repaired = repaired[:0]
		realms, err := tx.ListRealms(ctx)
		if err != nil {
			return err
		}
		for i := range realms {
			r := &realms[i]
			if r.HasManagementClient() {
				continue
			}
			if err := tx.SetupManagementClient(ctx, r); err != nil {
				return fmt.Errorf("realm %q: %w", r.Name, err)
			}
			repaired = append(repaired, r.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, name := range repaired {
		metrics.ManagementClientsRepaired.Inc()
		logger.From(ctx).Info("management client recreated", logger.Realm(name))
	}
	return repaired, nil
}
