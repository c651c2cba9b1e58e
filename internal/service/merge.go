// Package service contains the historical account import job.
package service

import (
	"github.com/and161185/mirror-importer/internal/model"
)

// MergeOutcome describes what merging one archival record did to a row.
type MergeOutcome int

const (
	// Unchanged means the row already carried everything the archive could add.
	Unchanged MergeOutcome = iota
	// Updated means at least one field was filled (or the row is new) and it must be saved.
	Updated
	// SkippedNewer means the row existed with a key and was left alone.
	SkippedNewer
)

func (o MergeOutcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case SkippedNewer:
		return "skipped"
	default:
		return "unchanged"
	}
}

// Merge fills the missing fields of e from an archival record. existed tells whether e
// was loaded from the store or freshly built from the record's id.
//
// Rows that already exist and carry a key were created after the archive was taken and
// are never touched. Otherwise only unset fields are filled, and the deleted flag only
// ever moves from false to true.
func Merge(e *model.Entity, existed bool, info model.AccountInfo) MergeOutcome {
	// Every account in the archive had a key at export time, so an existing keyed row postdates it.
	if existed && len(e.Key) > 0 {
		return SkippedNewer
	}

	changed := !existed

	if e.AutoRenewPeriod == nil && info.AutoRenewPeriod != nil {
		period := *info.AutoRenewPeriod
		e.AutoRenewPeriod = &period
		changed = true
	}

	// Accounts can't be undeleted.
	if e.Deleted != info.Deleted && info.Deleted {
		e.Deleted = true
		changed = true
	}

	if e.ExpirationTimestamp == nil && info.ExpirationTime != nil {
		ts := model.TimestampInNanosMax(info.ExpirationTime.Seconds, info.ExpirationTime.Nanos)
		e.ExpirationTimestamp = &ts
		changed = true
	}

	if len(e.Key) == 0 && info.Key != nil {
		e.Key = append([]byte{}, info.Key...)
		changed = true
	}

	// An empty archival memo still counts: the row's memo is "" and the archive had the field.
	if e.Memo == "" && info.Memo != nil {
		e.Memo = *info.Memo
		changed = true
	}

	// The proxy account is only referenced; its own row is created by whoever imports it.
	if e.ProxyAccountID == nil && info.ProxyAccountID != nil {
		e.ProxyAccountID = resolveAccount(*info.ProxyAccountID)
		changed = changed || e.ProxyAccountID != nil
	}

	if changed {
		return Updated
	}
	return Unchanged
}

// resolveAccount maps the ledger's 0.0.0 placeholder to no account.
func resolveAccount(id model.EntityID) *model.EntityID {
	if id.IsZero() {
		return nil
	}
	return &id
}
