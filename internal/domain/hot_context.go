package domain

type HistoryEntry struct {
	Kind   EventKind
	Text   string
	Detail []string
}

type HistoryBlock struct {
	Date    Date
	Entries []HistoryEntry
}

// HotContextDocument splits MEMORY.md into the agent-owned text around the
// RecentHistory region and the region itself. Preamble and Postamble are
// written back verbatim.
type HotContextDocument struct {
	Preamble  string
	History   []HistoryBlock
	Postamble string
	// HasRegion is false when the document carried no RecentHistory markers.
	HasRegion bool
}

func (d HotContextDocument) Block(date Date) (HistoryBlock, bool) {
	for _, block := range d.History {
		if block.Date == date {
			return block, true
		}
	}

	return HistoryBlock{}, false
}

func BlockFromEvents(date Date, events []Event) HistoryBlock {
	block := HistoryBlock{Date: date, Entries: make([]HistoryEntry, 0, len(events))}
	for _, event := range events {
		block.Entries = append(block.Entries, HistoryEntry{
			Kind:   event.Kind,
			Text:   event.Text,
			Detail: append([]string(nil), event.Detail...),
		})
	}

	return block
}
