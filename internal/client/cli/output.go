package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/api"
)

func (a *App) writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(a.out, format, args...)
	return err
}

func (a *App) writeArtifact(art *api.Artifact) error {
	return a.writePlain("%s  v%d  %s  %d bytes  %s\n", art.ID, art.Version, art.Name, art.Size, art.Scope)
}

func (a *App) writeArtifactList(list []api.Artifact) error {
	if len(list) == 0 {
		return a.writePlain("no artifacts\n")
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tNAME\tSIZE\tTYPE\tCREATED")
	for _, art := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n", art.ID, art.Version, art.Name, art.Size, art.MimeType, formatTime(art.CreatedAt))
	}
	return w.Flush()
}

func (a *App) writeAuditPage(page *api.AuditPage) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tACTION\tTARGET\tDETAIL")
	for _, e := range page.Entries {
		actor := e.ActorID
		if actor == "" {
			actor = "system"
		}
		target := e.TargetName
		if target == "" {
			target = e.TargetID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", formatTime(e.CreatedAt), actor, e.Action, target, e.Detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return a.writePlain("%d of %d entries\n", len(page.Entries), page.Total)
}

func (a *App) writeCounts(counts map[string]int64) error {
	actions := make([]string, 0, len(counts))
	for action := range counts {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tCOUNT")
	for _, action := range actions {
		fmt.Fprintf(w, "%s\t%d\n", action, counts[action])
	}
	return w.Flush()
}

func (a *App) writeSpaces(spaces []api.Space) error {
	if len(spaces) == 0 {
		return a.writePlain("no spaces\n")
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQUOTA\tMEMBERS")
	for _, sp := range spaces {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", sp.ID, sp.Name, sp.QuotaBytes, len(sp.Members))
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
