package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"beacon/api/internal/auditlog"
	"beacon/api/internal/blob"
	"beacon/api/internal/initiative"
	"beacon/api/internal/keyedlock"
	"beacon/api/internal/notify"
	"beacon/api/internal/report"
	"beacon/api/internal/search"
	"beacon/api/internal/snapshot"
	"beacon/api/internal/support"
	"beacon/api/internal/userstore"
	"beacon/api/internal/util"
)

// Identity is the caller as supplied by the external auth collaborator.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func (id Identity) actor() string {
	if id.Email != "" {
		return id.Email
	}
	return id.UserID
}

// Result reasons the request layer switches on.
const (
	ReasonStorage  = "storage unavailable"
	ReasonConflict = "version conflict"
	ReasonNotFound = "not found"
)

// Deps are the collaborators a Service is composed from. Search may be
// nil (disabled) and DB is nil when the document backend is active.
type Deps struct {
	Docs          *blob.Store
	Initiatives   *initiative.Store
	Locks         *keyedlock.KeyedLock
	Changelog     *auditlog.Changelog
	Logs          *auditlog.Log
	Snapshots     *snapshot.Store
	Notifications *notify.Store
	Users         *userstore.Store
	Reports       *report.Store
	Support       *support.Store
	Search        *search.Service
	DB            *sql.DB
}

type Service struct {
	docs          *blob.Store
	initiatives   *initiative.Store
	locks         *keyedlock.KeyedLock
	changelog     *auditlog.Changelog
	logs          *auditlog.Log
	snapshots     *snapshot.Store
	notifications *notify.Store
	users         *userstore.Store
	reports       *report.Store
	support       *support.Store
	search        *search.Service
	db            *sql.DB
}

func NewService(d Deps) *Service {
	return &Service{
		docs:          d.Docs,
		initiatives:   d.Initiatives,
		locks:         d.Locks,
		changelog:     d.Changelog,
		logs:          d.Logs,
		snapshots:     d.Snapshots,
		notifications: d.Notifications,
		users:         d.Users,
		reports:       d.Reports,
		support:       d.Support,
		search:        d.Search,
		db:            d.DB,
	}
}

// fail logs the swallowed error with its operation and key, records an
// error-category log entry, and returns the availability-first result.
func (s *Service) fail(ctx context.Context, op, key string, err error) Result {
	log.Printf("app: %s failed key=%s: %v", op, key, err)
	if s.logs != nil {
		entry := auditlog.Entry{
			ID:        util.NewSortableID("err", time.Now().UTC()),
			Severity:  "error",
			Message:   op + " failed",
			Metadata:  map[string]string{"key": key, "error": err.Error()},
			Timestamp: time.Now().UTC(),
		}
		if logErr := s.logs.Append(ctx, auditlog.CategoryErrors, entry); logErr != nil {
			log.Printf("app: recording error entry failed: %v", logErr)
		}
	}
	return Result{OK: false, Reason: ReasonStorage}
}

func (s *Service) activity(ctx context.Context, who Identity, message, refID string) {
	now := time.Now().UTC()
	entry := auditlog.Entry{
		ID:        util.NewSortableID("act", now),
		Severity:  "info",
		Actor:     who.actor(),
		Message:   message,
		Metadata:  map[string]string{"refId": refID},
		Timestamp: now,
	}
	if err := s.logs.Append(ctx, auditlog.CategoryActivity, entry); err != nil {
		log.Printf("app: recording activity failed: %v", err)
	}
}

// Ping verifies backend connectivity for the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			return err
		}
	}
	_, err := s.docs.Exists(ctx, "data/initiatives.json")
	return err
}

// Bootstrap pushes the current collection into the search index, if one
// is configured.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.search == nil {
		return
	}
	items, err := s.initiatives.LoadAll(ctx)
	if err != nil {
		log.Printf("app: bootstrap reindex skipped: %v", err)
		return
	}
	records := make([]search.Record, 0, len(items))
	for _, item := range items {
		if item.DeletedAt != nil {
			continue
		}
		records = append(records, searchRecord(item))
	}
	s.search.ReindexAll(records)
}

func searchRecord(item initiative.Initiative) search.Record {
	return search.Record{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Status:      item.Status,
		Owner:       item.Owner,
		TeamID:      item.TeamID,
	}
}

// --- initiatives ---

// ListInitiatives returns the collection, excluding logically deleted
// entries unless asked for. A backend failure degrades to an empty list.
func (s *Service) ListInitiatives(ctx context.Context, includeDeleted bool) ([]initiative.Initiative, Result) {
	items, err := s.initiatives.LoadAll(ctx)
	if err != nil {
		return []initiative.Initiative{}, s.fail(ctx, "list initiatives", "data/initiatives.json", err)
	}
	if includeDeleted {
		return items, okResult()
	}
	live := make([]initiative.Initiative, 0, len(items))
	for _, item := range items {
		if item.DeletedAt == nil {
			live = append(live, item)
		}
	}
	return live, okResult()
}

func (s *Service) GetInitiative(ctx context.Context, id string) (initiative.Initiative, bool, Result) {
	item, found, err := s.initiatives.Get(ctx, id)
	if err != nil {
		return initiative.Initiative{}, false, s.fail(ctx, "get initiative", id, err)
	}
	return item, found, okResult()
}

// SaveInitiative creates or replaces an initiative. Writes to the same id
// are serialized on a per-id lock so a later save cannot overtake an
// earlier one still waiting out a retry.
func (s *Service) SaveInitiative(ctx context.Context, who Identity, item initiative.Initiative) (initiative.Initiative, Result) {
	if item.ID == "" {
		item.ID = util.NewID("init")
	}
	release, err := s.locks.Acquire(ctx, "initiative:"+item.ID)
	if err != nil {
		return initiative.Initiative{}, s.fail(ctx, "save initiative", item.ID, err)
	}
	defer release()

	old, existed, err := s.initiatives.Get(ctx, item.ID)
	if err != nil {
		return initiative.Initiative{}, s.fail(ctx, "save initiative", item.ID, err)
	}

	item.UpdatedAt = time.Now().UTC()
	item.UpdatedBy = who.actor()
	saved, err := s.initiatives.Upsert(ctx, item)
	if err != nil {
		return initiative.Initiative{}, s.fail(ctx, "save initiative", item.ID, err)
	}

	s.recordChanges(ctx, who, old, saved, existed)
	s.afterInitiativeWrite(ctx, who, old, saved, existed)
	return saved, okResult()
}

// UpdateInitiative enforces the version gate. On a conflict it refetches
// and retries exactly once; only a second conflict is surfaced.
func (s *Service) UpdateInitiative(ctx context.Context, who Identity, item initiative.Initiative) (initiative.Initiative, Result) {
	release, err := s.locks.Acquire(ctx, "initiative:"+item.ID)
	if err != nil {
		return initiative.Initiative{}, s.fail(ctx, "update initiative", item.ID, err)
	}
	defer release()

	old, existed, err := s.initiatives.Get(ctx, item.ID)
	if err != nil {
		return initiative.Initiative{}, s.fail(ctx, "update initiative", item.ID, err)
	}
	if !existed {
		return initiative.Initiative{}, Result{OK: false, Reason: ReasonNotFound}
	}

	item.UpdatedAt = time.Now().UTC()
	item.UpdatedBy = who.actor()
	saved, err := s.initiatives.Update(ctx, item)
	if errors.Is(err, initiative.ErrConflict) {
		stored, found, getErr := s.initiatives.Get(ctx, item.ID)
		if getErr != nil {
			return initiative.Initiative{}, s.fail(ctx, "update initiative", item.ID, getErr)
		}
		if !found {
			return initiative.Initiative{}, Result{OK: false, Reason: ReasonNotFound}
		}
		retry := item
		retry.Version = stored.Version
		saved, err = s.initiatives.Update(ctx, retry)
		if errors.Is(err, initiative.ErrConflict) {
			var conflict *initiative.ConflictError
			details := map[string]int{}
			if errors.As(err, &conflict) {
				details["submitted"] = conflict.Submitted
				details["stored"] = conflict.Stored
			}
			return initiative.Initiative{}, Result{OK: false, Reason: ReasonConflict, Details: details}
		}
	}
	if errors.Is(err, initiative.ErrNotFound) {
		return initiative.Initiative{}, Result{OK: false, Reason: ReasonNotFound}
	}
	if err != nil {
		return initiative.Initiative{}, s.fail(ctx, "update initiative", item.ID, err)
	}

	s.recordChanges(ctx, who, old, saved, true)
	s.afterInitiativeWrite(ctx, who, old, saved, true)
	return saved, okResult()
}

// DeleteInitiative removes the entity from the collection. Deleting an
// absent id reports false, never an error.
func (s *Service) DeleteInitiative(ctx context.Context, who Identity, id string) (bool, Result) {
	release, err := s.locks.Acquire(ctx, "initiative:"+id)
	if err != nil {
		return false, s.fail(ctx, "delete initiative", id, err)
	}
	defer release()

	removed, err := s.initiatives.Delete(ctx, id)
	if err != nil {
		return false, s.fail(ctx, "delete initiative", id, err)
	}
	if removed {
		s.appendChangelog(ctx, auditlog.ChangeRecord{
			ID:        util.NewSortableID("chg", time.Now().UTC()),
			EntityID:  id,
			Field:     "deleted",
			Actor:     who.actor(),
			Timestamp: time.Now().UTC(),
		})
		s.activity(ctx, who, "initiative deleted", id)
		if s.search != nil {
			s.search.RemoveInitiative(id)
		}
	}
	return removed, okResult()
}

func (s *Service) SyncInitiatives(ctx context.Context, who Identity, batch []initiative.Initiative) (initiative.SyncReport, Result) {
	now := time.Now().UTC()
	for i := range batch {
		batch[i].UpdatedAt = now
		batch[i].UpdatedBy = who.actor()
	}
	rep, err := s.initiatives.Sync(ctx, batch)
	if err != nil {
		return initiative.SyncReport{}, s.fail(ctx, "sync initiatives", "batch", err)
	}
	s.activity(ctx, who, "initiative batch synced", "")
	s.Bootstrap(ctx)
	return rep, okResult()
}

func (s *Service) PushInitiatives(ctx context.Context, who Identity, list []initiative.Initiative) Result {
	if err := s.initiatives.Push(ctx, list); err != nil {
		return s.fail(ctx, "push initiatives", "data/initiatives.json", err)
	}
	s.activity(ctx, who, "initiative collection replaced", "")
	s.Bootstrap(ctx)
	return okResult()
}

// recordChanges appends one changelog record per changed field.
func (s *Service) recordChanges(ctx context.Context, who Identity, old, updated initiative.Initiative, existed bool) {
	now := time.Now().UTC()
	if !existed {
		s.appendChangelog(ctx, auditlog.ChangeRecord{
			ID:        util.NewSortableID("chg", now),
			EntityID:  updated.ID,
			Field:     "created",
			NewValue:  updated.Title,
			Actor:     who.actor(),
			Timestamp: now,
		})
		return
	}
	for _, d := range fieldDiffs(old, updated) {
		s.appendChangelog(ctx, auditlog.ChangeRecord{
			ID:        util.NewSortableID("chg", now),
			EntityID:  updated.ID,
			Field:     d.field,
			OldValue:  d.oldValue,
			NewValue:  d.newValue,
			Actor:     who.actor(),
			Timestamp: now,
		})
	}
}

func (s *Service) appendChangelog(ctx context.Context, rec auditlog.ChangeRecord) {
	if err := s.changelog.Append(ctx, rec); err != nil {
		log.Printf("app: changelog append failed entity=%s: %v", rec.EntityID, err)
	}
}

type diff struct {
	field    string
	oldValue string
	newValue string
}

func fieldDiffs(old, updated initiative.Initiative) []diff {
	pairs := []struct {
		field    string
		old, new string
	}{
		{"title", old.Title, updated.Title},
		{"status", old.Status, updated.Status},
		{"owner", old.Owner, updated.Owner},
		{"teamId", old.TeamID, updated.TeamID},
		{"description", old.Description, updated.Description},
		{"startDate", old.StartDate, updated.StartDate},
		{"endDate", old.EndDate, updated.EndDate},
	}
	var diffs []diff
	for _, p := range pairs {
		if p.old != p.new {
			diffs = append(diffs, diff{field: p.field, oldValue: p.old, newValue: p.new})
		}
	}
	return diffs
}

// afterInitiativeWrite handles the fire-and-forget side effects of a
// successful write: activity log, search index, owner notification.
func (s *Service) afterInitiativeWrite(ctx context.Context, who Identity, old, saved initiative.Initiative, existed bool) {
	if existed {
		s.activity(ctx, who, "initiative updated", saved.ID)
	} else {
		s.activity(ctx, who, "initiative created", saved.ID)
	}

	if s.search != nil {
		if saved.DeletedAt != nil {
			s.search.RemoveInitiative(saved.ID)
		} else {
			s.search.IndexInitiative(searchRecord(saved))
		}
	}

	if saved.Owner != "" && saved.Owner != old.Owner && saved.Owner != who.UserID {
		now := time.Now().UTC()
		n := notify.Notification{
			ID:        util.NewID("ntf"),
			UserID:    saved.Owner,
			Kind:      "assignment",
			Title:     "Initiative assigned to you",
			Message:   saved.Title,
			RefID:     saved.ID,
			Timestamp: now,
		}
		if err := s.notifications.Add(ctx, n); err != nil {
			log.Printf("app: owner notification failed user=%s: %v", saved.Owner, err)
		}
	}
}

// --- changelog and logs ---

func (s *Service) RecentChanges(ctx context.Context, limit int) ([]auditlog.ChangeRecord, Result) {
	records, err := s.changelog.Recent(ctx, limit)
	if err != nil {
		return []auditlog.ChangeRecord{}, s.fail(ctx, "recent changes", "data/changelog.json", err)
	}
	return records, okResult()
}

func (s *Service) QueryLogs(ctx context.Context, category string, start, end time.Time, filter auditlog.Filter) ([]auditlog.Entry, Result) {
	entries, err := s.logs.QueryRange(ctx, category, start, end, filter)
	if err != nil {
		return []auditlog.Entry{}, s.fail(ctx, "query logs", category, err)
	}
	return entries, okResult()
}

// RunRetentionSweep deletes partitioned log files older than the
// configured retention and reports how many were removed.
func (s *Service) RunRetentionSweep(ctx context.Context) (int, Result) {
	settings, err := s.users.LoadSettings(ctx)
	if err != nil {
		return 0, s.fail(ctx, "retention sweep", "data/config.json", err)
	}
	deleted, err := s.logs.RetentionSweep(ctx, settings.RetentionDays)
	if err != nil {
		return deleted, s.fail(ctx, "retention sweep", "logs/", err)
	}
	if deleted > 0 {
		log.Printf("app: retention sweep removed %d log files", deleted)
	}
	return deleted, okResult()
}

// StartRetentionLoop sweeps on the given interval until ctx is canceled.
func (s *Service) StartRetentionLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunRetentionSweep(ctx)
			}
		}
	}()
}

// --- snapshots ---

func (s *Service) CreateSnapshot(ctx context.Context, who Identity, label string) (snapshot.Info, Result) {
	settings, err := s.users.LoadSettings(ctx)
	if err != nil {
		return snapshot.Info{}, s.fail(ctx, "create snapshot", "data/config.json", err)
	}
	if !settings.SnapshotsEnabled {
		return snapshot.Info{}, Result{OK: false, Reason: "snapshots disabled"}
	}

	items, err := s.initiatives.LoadAll(ctx)
	if err != nil {
		return snapshot.Info{}, s.fail(ctx, "create snapshot", "data/initiatives.json", err)
	}
	snap := snapshot.Snapshot{
		ID:          util.NewID("snap"),
		Timestamp:   time.Now().UTC(),
		CreatedBy:   who.actor(),
		Label:       label,
		Initiatives: items,
	}
	if err := s.snapshots.Create(ctx, snap); err != nil {
		return snapshot.Info{}, s.fail(ctx, "create snapshot", snap.ID, err)
	}
	s.activity(ctx, who, "snapshot created", snap.ID)
	return snapshot.Info{ID: snap.ID, Timestamp: snap.Timestamp, Label: snap.Label, Count: len(items)}, okResult()
}

func (s *Service) ListSnapshots(ctx context.Context) ([]snapshot.Info, Result) {
	infos, err := s.snapshots.List(ctx)
	if err != nil {
		return []snapshot.Info{}, s.fail(ctx, "list snapshots", "snapshots/", err)
	}
	return infos, okResult()
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (*snapshot.Snapshot, Result) {
	snap, err := s.snapshots.Load(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get snapshot", id, err)
	}
	return snap, okResult()
}

// RestoreSnapshot replaces the live collection with a snapshot's embedded
// copy. Missing snapshots report not found, not an error.
func (s *Service) RestoreSnapshot(ctx context.Context, who Identity, id string) Result {
	snap, err := s.snapshots.Load(ctx, id)
	if err != nil {
		return s.fail(ctx, "restore snapshot", id, err)
	}
	if snap == nil {
		return Result{OK: false, Reason: ReasonNotFound}
	}
	if err := s.initiatives.Push(ctx, snap.Initiatives); err != nil {
		return s.fail(ctx, "restore snapshot", id, err)
	}
	s.activity(ctx, who, "snapshot restored", id)
	s.Bootstrap(ctx)
	return okResult()
}

// --- notifications ---

func (s *Service) Notify(ctx context.Context, n notify.Notification) Result {
	if n.ID == "" {
		n.ID = util.NewID("ntf")
	}
	if err := s.notifications.Add(ctx, n); err != nil {
		return s.fail(ctx, "add notification", n.UserID, err)
	}
	return okResult()
}

func (s *Service) Notifications(ctx context.Context, userID string) ([]notify.Notification, Result) {
	list, err := s.notifications.List(ctx, userID)
	if err != nil {
		return []notify.Notification{}, s.fail(ctx, "list notifications", userID, err)
	}
	return list, okResult()
}

func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID string) Result {
	if err := s.notifications.MarkRead(ctx, userID, notificationID); err != nil {
		return s.fail(ctx, "mark notification read", userID, err)
	}
	return okResult()
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) Result {
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		return s.fail(ctx, "mark all notifications read", userID, err)
	}
	return okResult()
}

func (s *Service) ClearNotifications(ctx context.Context, userID string) Result {
	if err := s.notifications.Clear(ctx, userID); err != nil {
		return s.fail(ctx, "clear notifications", userID, err)
	}
	return okResult()
}

// --- users and settings ---

func (s *Service) Users(ctx context.Context) ([]userstore.User, Result) {
	users, err := s.users.List(ctx)
	if err != nil {
		return []userstore.User{}, s.fail(ctx, "list users", "data/users.json", err)
	}
	return users, okResult()
}

func (s *Service) SaveUser(ctx context.Context, who Identity, user userstore.User) Result {
	if user.ID == "" {
		user.ID = util.NewID("usr")
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return s.fail(ctx, "save user", user.ID, err)
	}
	s.activity(ctx, who, "user saved", user.ID)
	return okResult()
}

func (s *Service) RemoveUser(ctx context.Context, who Identity, id string) (bool, Result) {
	removed, err := s.users.Remove(ctx, id)
	if err != nil {
		return false, s.fail(ctx, "remove user", id, err)
	}
	if removed {
		s.activity(ctx, who, "user removed", id)
	}
	return removed, okResult()
}

func (s *Service) Settings(ctx context.Context) (userstore.Settings, Result) {
	settings, err := s.users.LoadSettings(ctx)
	if err != nil {
		return userstore.DefaultSettings(), s.fail(ctx, "load settings", "data/config.json", err)
	}
	return settings, okResult()
}

func (s *Service) SaveSettings(ctx context.Context, who Identity, settings userstore.Settings) Result {
	if err := s.users.SaveSettings(ctx, settings); err != nil {
		return s.fail(ctx, "save settings", "data/config.json", err)
	}
	s.activity(ctx, who, "settings saved", "")
	return okResult()
}

// --- reports ---

func (s *Service) SaveReport(ctx context.Context, who Identity, r report.Report) Result {
	r.GeneratedBy = who.actor()
	if err := s.reports.Save(ctx, r); err != nil {
		return s.fail(ctx, "save report", r.Period, err)
	}
	s.activity(ctx, who, "report generated", r.Period)
	return okResult()
}

func (s *Service) GetReport(ctx context.Context, period, teamID string) (*report.Report, Result) {
	r, err := s.reports.Load(ctx, period, teamID)
	if err != nil {
		return nil, s.fail(ctx, "get report", period, err)
	}
	return r, okResult()
}

func (s *Service) ListReports(ctx context.Context, period string) ([]string, Result) {
	teams, err := s.reports.ListPeriod(ctx, period)
	if err != nil {
		return []string{}, s.fail(ctx, "list reports", period, err)
	}
	return teams, okResult()
}

// --- support ---

func (s *Service) AddTicket(ctx context.Context, who Identity, t support.Ticket) Result {
	if t.ID == "" {
		t.ID = util.NewID("tkt")
	}
	t.UserID = who.UserID
	if err := s.support.AddTicket(ctx, t); err != nil {
		return s.fail(ctx, "add ticket", t.ID, err)
	}
	return okResult()
}

func (s *Service) ListTickets(ctx context.Context) ([]support.Ticket, Result) {
	tickets, err := s.support.ListTickets(ctx)
	if err != nil {
		return []support.Ticket{}, s.fail(ctx, "list tickets", "support/tickets.json", err)
	}
	return tickets, okResult()
}

func (s *Service) AddFeedback(ctx context.Context, who Identity, f support.Feedback) Result {
	if f.ID == "" {
		f.ID = util.NewID("fbk")
	}
	f.UserID = who.UserID
	if err := s.support.AddFeedback(ctx, f); err != nil {
		return s.fail(ctx, "add feedback", f.ID, err)
	}
	return okResult()
}

func (s *Service) ListFeedback(ctx context.Context) ([]support.Feedback, Result) {
	entries, err := s.support.ListFeedback(ctx)
	if err != nil {
		return []support.Feedback{}, s.fail(ctx, "list feedback", "support/feedback.json", err)
	}
	return entries, okResult()
}

// --- search ---

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}
