package models

// Folder identifiers. These are the only values an email's Folder column
// may hold. Starred is not a folder: it is a cross-folder view derived from
// the Starred flag.
const (
	FolderInbox  = "inbox"
	FolderSent   = "sent"
	FolderDrafts = "drafts"
	FolderTrash  = "trash"
)

// ViewStarred is the sidebar view that selects starred emails across all
// folders. It never appears in an email row.
const ViewStarred = "starred"

// Email represents one row of the hosted email table.
type Email struct {
	ID          string       `json:"id,omitempty"`
	UserID      string       `json:"user_id,omitempty"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	Preview     string       `json:"preview"`
	Content     string       `json:"content,omitempty"`
	Date        string       `json:"date"` // display string, ordering is delegated to the provider
	Read        bool         `json:"read"`
	Starred     bool         `json:"starred"`
	Folder      string       `json:"folder"`
	Labels      []string     `json:"labels"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ThreadID    string       `json:"thread_id,omitempty"`
	ParentID    string       `json:"parent_id,omitempty"`
}

// HasLabel reports whether the email carries the given label.
func (e *Email) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Attachment represents one row of the hosted attachment table. URL is the
// durable public object URL and is only resolvable once the upload
// completed.
type Attachment struct {
	ID      string `json:"id,omitempty"`
	EmailID string `json:"email_id,omitempty"`
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Type    string `json:"type"`
	URL     string `json:"url"`
}

// Folder describes a sidebar entry. Static configuration, not user data.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// DefaultFolders is the fixed sidebar layout. The starred entry routes to
// the starred view, not to a folder query.
var DefaultFolders = []Folder{
	{ID: FolderInbox, Name: "Inbox", Icon: "inbox"},
	{ID: ViewStarred, Name: "Starred", Icon: "star"},
	{ID: FolderSent, Name: "Sent", Icon: "send"},
	{ID: FolderDrafts, Name: "Drafts", Icon: "file"},
	{ID: FolderTrash, Name: "Trash", Icon: "trash"},
}

// ValidFolder reports whether id names a real folder an email row may live
// in.
func ValidFolder(id string) bool {
	switch id {
	case FolderInbox, FolderSent, FolderDrafts, FolderTrash:
		return true
	}
	return false
}

// Profile represents one row of the hosted profile table.
type Profile struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}
