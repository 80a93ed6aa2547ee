package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/devroom-labs/devroom-backend/internal/projects/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProjectNotFound = errors.New("project not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Create inserts a project with the creator as its first member.
func (r *Repo) Create(ctx context.Context, userDBID, name string) (*domain.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("name required")
	}

	for i := 0; i < 5; i++ {
		publicID, err := NewPublicID("devroom")
		if err != nil {
			return nil, err
		}

		const q = `
with p as (
  insert into projects (public_id, name, file_tree)
  values ($1, $2, '{}'::jsonb)
  returning id, public_id, name, created_at, updated_at
), m as (
  insert into project_members (project_id, user_id)
  select p.id, $3::uuid from p
)
select public_id, name, created_at, updated_at from p;
`
		var p domain.Project
		err = r.db.QueryRow(ctx, q, publicID, name, userDBID).
			Scan(&p.PublicID, &p.Name, &p.CreatedAt, &p.UpdatedAt)

		if err == nil {
			p.FileTree = filetree.Tree{}
			return &p, nil
		}

		// unique violation on public_id → retry
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

// GetByPublicID loads a project with members and file tree. The caller must
// be a member.
func (r *Repo) GetByPublicID(ctx context.Context, userDBID, publicID string) (*domain.Project, error) {
	const q = `
select p.public_id, p.name, p.file_tree::text, p.created_at, p.updated_at
from projects p
join project_members pm on pm.project_id = p.id and pm.user_id = $1::uuid
where p.public_id = $2 and p.deleted_at is null;
`
	var p domain.Project
	var treeJSON string
	err := r.db.QueryRow(ctx, q, userDBID, publicID).
		Scan(&p.PublicID, &p.Name, &treeJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, ErrProjectNotFound
	}

	if err := json.Unmarshal([]byte(treeJSON), &p.FileTree); err != nil {
		return nil, fmt.Errorf("decode file tree: %w", err)
	}
	if p.FileTree == nil {
		p.FileTree = filetree.Tree{}
	}

	members, err := r.listMembers(ctx, publicID)
	if err != nil {
		return nil, err
	}
	p.Members = members

	return &p, nil
}

// AddMembers attaches users to the project. Existing memberships are left
// untouched. Returns the number of newly added members.
func (r *Repo) AddMembers(ctx context.Context, userDBID, publicID string, memberIDs []string) (int, error) {
	// Only members may add collaborators.
	if _, err := r.GetByPublicID(ctx, userDBID, publicID); err != nil {
		return 0, err
	}

	const q = `
insert into project_members (project_id, user_id)
select p.id, u.id
from projects p, unnest($2::uuid[]) as uid
join users u on u.id = uid
where p.public_id = $1 and p.deleted_at is null
on conflict do nothing;
`
	ct, err := r.db.Exec(ctx, q, publicID, memberIDs)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// ListForUser returns the projects the user is a member of, newest first.
// File trees are omitted from listings.
func (r *Repo) ListForUser(ctx context.Context, userDBID string) ([]domain.Project, error) {
	const q = `
select p.public_id, p.name, p.created_at, p.updated_at
from projects p
join project_members pm on pm.project_id = p.id
where pm.user_id = $1::uuid and p.deleted_at is null
order by p.created_at desc;
`
	rows, err := r.db.Query(ctx, q, userDBID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.PublicID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) listMembers(ctx context.Context, publicID string) ([]domain.Member, error) {
	const q = `
select u.id::text, coalesce(u.email,'')
from project_members pm
join projects p on p.id = pm.project_id
join users u on u.id = pm.user_id
where p.public_id = $1
order by u.email;
`
	rows, err := r.db.Query(ctx, q, publicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Member, 0, 8)
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Email); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadTree implements filetree.Persistence.
func (r *Repo) LoadTree(ctx context.Context, publicID string) (filetree.Tree, error) {
	const q = `
select p.file_tree::text
from projects p
where p.public_id = $1 and p.deleted_at is null;
`
	var treeJSON string
	if err := r.db.QueryRow(ctx, q, publicID).Scan(&treeJSON); err != nil {
		return nil, ErrProjectNotFound
	}

	var tree filetree.Tree
	if err := json.Unmarshal([]byte(treeJSON), &tree); err != nil {
		return nil, fmt.Errorf("decode file tree: %w", err)
	}
	return tree, nil
}

// SaveTree implements filetree.Persistence. A single-statement update keeps
// the whole-snapshot write atomic; per-project ordering is the store's job.
func (r *Repo) SaveTree(ctx context.Context, publicID string, tree filetree.Tree) error {
	payload, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode file tree: %w", err)
	}

	const q = `
update projects
set file_tree = $2::jsonb, updated_at = now()
where public_id = $1 and deleted_at is null;
`
	ct, err := r.db.Exec(ctx, q, publicID, string(payload))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}
