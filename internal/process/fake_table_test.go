package process

// fakeTable is an in-memory Table. Each Refresh advances to the next frame
// when more than one is configured; the last frame repeats.
type fakeTable struct {
	frames    [][]Entry
	idx       int
	refreshes int
}

func newFakeTable(frames ...[]Entry) *fakeTable {
	return &fakeTable{frames: frames, idx: -1}
}

func (f *fakeTable) Refresh() {
	f.refreshes++
	if f.idx < len(f.frames)-1 {
		f.idx++
	}
}

func (f *fakeTable) Entries() []Entry {
	if f.idx < 0 || len(f.frames) == 0 {
		return nil
	}
	return f.frames[f.idx]
}
