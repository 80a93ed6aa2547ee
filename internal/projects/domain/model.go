package domain

import (
	"time"

	"github.com/devroom-labs/devroom-backend/internal/filetree"
)

// Project is a collaborative workspace: a member set plus the authoritative
// file tree snapshot. It has no single owner; any member (or the AI
// participant acting on the project's behalf) may mutate it.
type Project struct {
	PublicID  string        `json:"id"`
	Name      string        `json:"name"`
	Members   []Member      `json:"users"`
	FileTree  filetree.Tree `json:"fileTree"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Member is a user reference carried on project payloads.
type Member struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
