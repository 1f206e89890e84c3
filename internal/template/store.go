// Package template is the versioned prompt template store. Every write
// appends to an immutable version ledger inside one transaction, and
// every read is scoped to the caller's tenant. A nil tenant in context
// means system scope, which owns the shared default templates.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/promptdeck/promptdeck/internal/cache"
	"github.com/promptdeck/promptdeck/internal/database"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/render"
	"github.com/promptdeck/promptdeck/internal/tenant"
)

const (
	templateColumns = "id, tenant_id, name, content, current_version, lifecycle, is_shareable, cloned_from_id, cloned_from_tenant, created_at, updated_at"
	versionColumns = "id, template_id, version, content, created_by, change_description, created_at"

	cacheTTL = 5 * time.Minute
)

type Store struct {
	db          database.Querier
	cache       *cache.Cache
	defaultName string
}

// NewStore builds a template store. cacheClient may be nil; reads then
// always hit the database.
func NewStore(db database.Querier, cacheClient *cache.Cache, defaultName string) *Store {
	return &Store{db: db, cache: cacheClient, defaultName: defaultName}
}

type CreateRequest struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	CreatedBy string `json:"created_by,omitempty"`
}

func (s *Store) Create(ctx context.Context, req CreateRequest) (*models.Template, error) {
	if req.Name == "" {
		return nil, &models.ValidationError{Msg: "template name must not be empty"}
	}
	if err := render.Validate(req.Content); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &models.StoreError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx)

	var t models.Template
	err = tx.QueryRow(ctx,
		`INSERT INTO templates (tenant_id, name, content, current_version)
		 VALUES ($1, $2, $3, 1)
		 RETURNING `+templateColumns,
		tenantParam(ctx), req.Name, req.Content,
	).Scan(templateTargets(&t)...)
	if isUniqueViolation(err) {
		return nil, &models.ConflictError{Resource: "template", Key: req.Name}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "insert template", Err: err}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO template_versions (template_id, version, content, created_by, change_description)
		 VALUES ($1, 1, $2, $3, 'Initial version')`,
		t.ID, req.Content, req.CreatedBy,
	)
	if err != nil {
		return nil, &models.StoreError{Op: "insert template version", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &models.StoreError{Op: "commit", Err: err}
	}

	s.invalidate(ctx, t.Name)
	return &t, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var t models.Template
	err := s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE id = $1 AND tenant_id IS NOT DISTINCT FROM $2 AND lifecycle <> 'deleted'`,
		id, tenantParam(ctx),
	).Scan(templateTargets(&t)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "template", Key: id.String()}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get template", Err: err}
	}
	return &t, nil
}

// GetByName is the pipeline's read path and the only cached one.
func (s *Store) GetByName(ctx context.Context, name string) (*models.Template, error) {
	key := s.cacheKey(ctx, name)
	if s.cache != nil {
		var cached models.Template
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("template cache read failed", "key", key, "error", err)
		}
	}

	var t models.Template
	err := s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE name = $1 AND tenant_id IS NOT DISTINCT FROM $2 AND lifecycle <> 'deleted'`,
		name, tenantParam(ctx),
	).Scan(templateTargets(&t)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "template", Key: name}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get template by name", Err: err}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, &t, cacheTTL); err != nil {
			slog.Warn("template cache write failed", "key", key, "error", err)
		}
	}
	return &t, nil
}

type UpdateRequest struct {
	Content           string `json:"content"`
	CreatedBy         string `json:"created_by,omitempty"`
	ChangeDescription string `json:"change_description,omitempty"`
}

// Update appends a new ledger version and moves the template's head to
// it. The version read is serialized with FOR UPDATE so concurrent
// updates produce distinct consecutive versions.
func (s *Store) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*models.Template, error) {
	if err := render.Validate(req.Content); err != nil {
		return nil, err
	}
	return s.appendVersion(ctx, id, req)
}

// Rollback creates a new version whose content is copied from an
// earlier one. History is never rewritten.
func (s *Store) Rollback(ctx context.Context, id uuid.UUID, toVersion int, createdBy string) (*models.Template, error) {
	v, err := s.GetVersion(ctx, id, toVersion)
	if err != nil {
		return nil, err
	}
	return s.appendVersion(ctx, id, UpdateRequest{
		Content:           v.Content,
		CreatedBy:         createdBy,
		ChangeDescription: fmt.Sprintf("Rollback to version %d", toVersion),
	})
}

func (s *Store) appendVersion(ctx context.Context, id uuid.UUID, req UpdateRequest) (*models.Template, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &models.StoreError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx)

	var current int
	err = tx.QueryRow(ctx,
		`SELECT current_version FROM templates
		 WHERE id = $1 AND tenant_id IS NOT DISTINCT FROM $2 AND lifecycle <> 'deleted'
		 FOR UPDATE`,
		id, tenantParam(ctx),
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "template", Key: id.String()}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "lock template", Err: err}
	}

	next := current + 1
	desc := req.ChangeDescription
	if desc == "" {
		desc = fmt.Sprintf("Version %d", next)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO template_versions (template_id, version, content, created_by, change_description)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, next, req.Content, req.CreatedBy, desc,
	)
	if err != nil {
		return nil, &models.StoreError{Op: "insert template version", Err: err}
	}

	var t models.Template
	err = tx.QueryRow(ctx,
		`UPDATE templates SET content = $2, current_version = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+templateColumns,
		id, req.Content, next,
	).Scan(templateTargets(&t)...)
	if err != nil {
		return nil, &models.StoreError{Op: "update template head", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &models.StoreError{Op: "commit", Err: err}
	}

	s.invalidate(ctx, t.Name)
	return &t, nil
}

// Clone copies a shareable template into the caller's tenant as a
// fresh version-1 template with provenance. A source with sharing
// disabled cannot be cloned, not even within its own scope.
func (s *Store) Clone(ctx context.Context, sourceID uuid.UUID, newName string) (*models.Template, error) {
	if newName == "" {
		return nil, &models.ValidationError{Msg: "template name must not be empty"}
	}

	var src models.Template
	err := s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE id = $1 AND lifecycle <> 'deleted'`,
		sourceID,
	).Scan(templateTargets(&src)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "template", Key: sourceID.String()}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get clone source", Err: err}
	}

	if !src.IsShareable {
		return nil, &models.ValidationError{Msg: fmt.Sprintf("template %q is not shareable", src.Name)}
	}

	callerTenant := tenantParam(ctx)
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &models.StoreError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx)

	var t models.Template
	err = tx.QueryRow(ctx,
		`INSERT INTO templates (tenant_id, name, content, current_version, cloned_from_id, cloned_from_tenant)
		 VALUES ($1, $2, $3, 1, $4, $5)
		 RETURNING `+templateColumns,
		callerTenant, newName, src.Content, src.ID, src.TenantID,
	).Scan(templateTargets(&t)...)
	if isUniqueViolation(err) {
		return nil, &models.ConflictError{Resource: "template", Key: newName}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "insert clone", Err: err}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO template_versions (template_id, version, content, change_description)
		 VALUES ($1, 1, $2, $3)`,
		t.ID, src.Content, fmt.Sprintf("Cloned from %q", src.Name),
	)
	if err != nil {
		return nil, &models.StoreError{Op: "insert clone version", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &models.StoreError{Op: "commit", Err: err}
	}

	s.invalidate(ctx, t.Name)
	return &t, nil
}

func (s *Store) Activate(ctx context.Context, id uuid.UUID) error {
	return s.setLifecycle(ctx, id, models.LifecycleActive)
}

func (s *Store) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.setLifecycle(ctx, id, models.LifecycleInactive)
}

// Delete is terminal. The row and its ledger stay on disk but no read
// path returns them again.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.setLifecycle(ctx, id, models.LifecycleDeleted)
}

func (s *Store) setLifecycle(ctx context.Context, id uuid.UUID, state models.Lifecycle) error {
	var name string
	err := s.db.QueryRow(ctx,
		`UPDATE templates SET lifecycle = $3, updated_at = now()
		 WHERE id = $1 AND tenant_id IS NOT DISTINCT FROM $2 AND lifecycle <> 'deleted'
		 RETURNING name`,
		id, tenantParam(ctx), state,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.NotFoundError{Resource: "template", Key: id.String()}
	}
	if err != nil {
		return &models.StoreError{Op: "set template lifecycle", Err: err}
	}

	s.invalidate(ctx, name)
	return nil
}

func (s *Store) SetShareable(ctx context.Context, id uuid.UUID, shareable bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE templates SET is_shareable = $3, updated_at = now()
		 WHERE id = $1 AND tenant_id IS NOT DISTINCT FROM $2 AND lifecycle <> 'deleted'`,
		id, tenantParam(ctx), shareable,
	)
	if err != nil {
		return &models.StoreError{Op: "set template shareable", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Resource: "template", Key: id.String()}
	}
	return nil
}

// ListShared returns shareable templates from every scope except the
// caller's own, as clone candidates.
func (s *Store) ListShared(ctx context.Context) ([]models.Template, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE is_shareable = true AND lifecycle = 'active'
		   AND tenant_id IS DISTINCT FROM $1
		 ORDER BY name`,
		tenantParam(ctx),
	)
	if err != nil {
		return nil, &models.StoreError{Op: "list shared templates", Err: err}
	}
	return collectTemplates(rows)
}

func (s *Store) GetVersion(ctx context.Context, id uuid.UUID, version int) (*models.TemplateVersion, error) {
	var v models.TemplateVersion
	err := s.db.QueryRow(ctx,
		`SELECT v.id, v.template_id, v.version, v.content, v.created_by, v.change_description, v.created_at
		 FROM template_versions v
		 JOIN templates t ON t.id = v.template_id
		 WHERE v.template_id = $1 AND v.version = $2
		   AND t.tenant_id IS NOT DISTINCT FROM $3 AND t.lifecycle <> 'deleted'`,
		id, version, tenantParam(ctx),
	).Scan(&v.ID, &v.TemplateID, &v.Version, &v.Content, &v.CreatedBy, &v.ChangeDescription, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "template version", Key: fmt.Sprintf("%s@%d", id, version)}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get template version", Err: err}
	}
	return &v, nil
}

func (s *Store) GetVersionHistory(ctx context.Context, id uuid.UUID) ([]models.TemplateVersion, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+versionColumns+` FROM template_versions
		 WHERE template_id = $1 ORDER BY version DESC`,
		id,
	)
	if err != nil {
		return nil, &models.StoreError{Op: "get version history", Err: err}
	}
	defer rows.Close()

	var versions []models.TemplateVersion
	for rows.Next() {
		var v models.TemplateVersion
		if err := rows.Scan(&v.ID, &v.TemplateID, &v.Version, &v.Content, &v.CreatedBy, &v.ChangeDescription, &v.CreatedAt); err != nil {
			return nil, &models.StoreError{Op: "scan version", Err: err}
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

type ListOptions struct {
	IncludeInactive bool
}

// List returns the caller's templates. A tenant seeing its very first
// list call gets the system default cloned in before the read, so no
// tenant ever starts empty.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.Template, error) {
	templates, err := s.list(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(templates) > 0 || tenant.IDFromContext(ctx) == uuid.Nil {
		return templates, nil
	}

	if err := s.bootstrapDefault(ctx); err != nil {
		return nil, err
	}
	return s.list(ctx, opts)
}

func (s *Store) list(ctx context.Context, opts ListOptions) ([]models.Template, error) {
	states := []string{string(models.LifecycleActive)}
	if opts.IncludeInactive {
		states = append(states, string(models.LifecycleInactive))
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE tenant_id IS NOT DISTINCT FROM $1 AND lifecycle = ANY($2)
		 ORDER BY name`,
		tenantParam(ctx), states,
	)
	if err != nil {
		return nil, &models.StoreError{Op: "list templates", Err: err}
	}
	return collectTemplates(rows)
}

// bootstrapDefault clones the system default into the tenant. Two
// concurrent first calls race on the (tenant_id, name) unique index;
// the loser treats 23505 as already bootstrapped.
func (s *Store) bootstrapDefault(ctx context.Context) error {
	var src models.Template
	err := s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE name = $1 AND tenant_id IS NULL AND lifecycle = 'active'`,
		s.defaultName,
	).Scan(templateTargets(&src)...)
	if errors.Is(err, pgx.ErrNoRows) {
		slog.Warn("no system default template to bootstrap from", "name", s.defaultName)
		return nil
	}
	if err != nil {
		return &models.StoreError{Op: "get system default", Err: err}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return &models.StoreError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx)

	var newID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO templates (tenant_id, name, content, current_version, cloned_from_id, cloned_from_tenant)
		 VALUES ($1, $2, $3, 1, $4, NULL)
		 RETURNING id`,
		tenantParam(ctx), src.Name, src.Content, src.ID,
	).Scan(&newID)
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return &models.StoreError{Op: "bootstrap default template", Err: err}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO template_versions (template_id, version, content, change_description)
		 VALUES ($1, 1, $2, 'Bootstrapped from system default')`,
		newID, src.Content,
	)
	if err != nil {
		return &models.StoreError{Op: "bootstrap default version", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &models.StoreError{Op: "commit", Err: err}
	}

	slog.Info("bootstrapped default template", "tenant", tenant.IDFromContext(ctx), "name", src.Name)
	return nil
}

func (s *Store) cacheKey(ctx context.Context, name string) string {
	return fmt.Sprintf("tpl:%s:%s", tenant.IDFromContext(ctx), name)
}

func (s *Store) invalidate(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(ctx, name)); err != nil {
		slog.Warn("template cache invalidation failed", "name", name, "error", err)
	}
}

func collectTemplates(rows pgx.Rows) ([]models.Template, error) {
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(templateTargets(&t)...); err != nil {
			return nil, &models.StoreError{Op: "scan template", Err: err}
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func templateTargets(t *models.Template) []any {
	return []any{
		&t.ID, &t.TenantID, &t.Name, &t.Content, &t.CurrentVersion, &t.Lifecycle,
		&t.IsShareable, &t.ClonedFromID, &t.ClonedFromTenant, &t.CreatedAt, &t.UpdatedAt,
	}
}

func tenantParam(ctx context.Context) *uuid.UUID {
	id := tenant.IDFromContext(ctx)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
