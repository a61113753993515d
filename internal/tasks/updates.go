package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ScanLibrary Phase = iota
	IndexFiles
	RemoveMissing
	ScanComplete
	WatchLibrary
	ExportEntries
	ParsePlaylist
	ResolveEntries
	CreatePlaylist
)

func (p Phase) String() string {
	switch p {
	case ScanLibrary:
		return "scan_library"
	case IndexFiles:
		return "index_files"
	case RemoveMissing:
		return "remove_missing"
	case ScanComplete:
		return "scan_complete"
	case WatchLibrary:
		return "watch_library"
	case ExportEntries:
		return "export_playlist"
	case ParsePlaylist:
		return "import_playlist"
	case ResolveEntries:
		return "resolve_entries"
	case CreatePlaylist:
		return "create_playlist"
	default:
		return ""
	}
}

// send reports update without blocking; a full or nil channel drops it.
func send(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func scanRootUpdate(step, total int, root string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanLibrary,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Scanning %s...", step, total, root),
	}
}

func indexFileUpdate(step int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   IndexFiles,
		Step:    step,
		Message: fmt.Sprintf("Indexed %s", path),
	}
}

func removeMissingUpdate(count int, root string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveMissing,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %d missing files under %s", count, root),
	}
}

func scanCompleteUpdate(result *ScanResult) ProgressUpdate {
	return ProgressUpdate{
		Phase: ScanComplete,
		Step:  1,
		Total: 1,
		Message: fmt.Sprintf("Scan complete: %d added, %d updated, %d removed, %d failed",
			result.Added, result.Updated, result.Removed, len(result.Failed)),
		Data: result,
	}
}

func watchingUpdate(folders int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WatchLibrary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Watching %d folders for changes...", folders),
	}
}

func exportEntryUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportEntries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, title),
	}
}

func parsedPlaylistUpdate(name string, entries, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ParsePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Read playlist %s (%d entries, %d remote entries skipped)", name, entries, skipped),
	}
}

func resolveEntryUpdate(step, total int, title string, found bool) ProgressUpdate {
	mark := "✓"
	if !found {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   ResolveEntries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, title),
	}
}

func createPlaylistUpdate(name, uri string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (%s)", name, uri),
		Data:    uri,
	}
}
