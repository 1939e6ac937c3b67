package internal

import (
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. Dry-run imports materialize into it so
// a full replay can be reported without touching the archive; tests use
// it for the same reason.
type MemStore struct {
	mu          sync.Mutex
	eras        map[string]*Era
	heaps       map[string]*ContextHeap
	messages    map[string]*Message
	actions     map[string]*CompactingAction
	watchlist   map[string]string
	sourceFiles map[string]*SourceFile
	attachments map[string]*Attachment
	driverState map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		eras:        make(map[string]*Era),
		heaps:       make(map[string]*ContextHeap),
		messages:    make(map[string]*Message),
		actions:     make(map[string]*CompactingAction),
		watchlist:   make(map[string]string),
		sourceFiles: make(map[string]*SourceFile),
		attachments: make(map[string]*Attachment),
		driverState: make(map[string][]byte),
	}
}

func (s *MemStore) PutEra(era *Era) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *era
	s.eras[era.ID] = &cp
	return nil
}

func (s *MemStore) GetEra(id string) (*Era, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if era, ok := s.eras[id]; ok {
		cp := *era
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) GetEraByName(name string) (*Era, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, era := range s.eras {
		if era.Name == name {
			cp := *era
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) RenameEra(id, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	era, ok := s.eras[id]
	if !ok {
		return fmt.Errorf("era %s not found", id)
	}
	era.Name = newName
	return nil
}

func (s *MemStore) Eras() ([]*Era, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eras := make([]*Era, 0, len(s.eras))
	for _, era := range s.eras {
		cp := *era
		eras = append(eras, &cp)
	}
	sort.Slice(eras, func(i, j int) bool { return eras[i].CreatedAt.Before(eras[j].CreatedAt) })
	return eras, nil
}

func (s *MemStore) PutHeap(heap *ContextHeap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *heap
	s.heaps[heap.ID] = &cp
	return nil
}

func (s *MemStore) GetHeap(id string) (*ContextHeap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if heap, ok := s.heaps[id]; ok {
		cp := *heap
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) HeapsByEra(eraID string) ([]*ContextHeap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var heaps []*ContextHeap
	for _, heap := range s.heaps {
		if heap.EraID == eraID {
			cp := *heap
			heaps = append(heaps, &cp)
		}
	}
	sort.Slice(heaps, func(i, j int) bool { return heaps[i].CreatedAt.Before(heaps[j].CreatedAt) })
	return heaps, nil
}

func (s *MemStore) PutMessage(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *MemStore) GetMessage(id string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		cp := *msg
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) HeapMessages(heapID string) ([]*Message, error) {
	return s.MessagesAfter(heapID, -1)
}

func (s *MemStore) HeapSize(heapID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, msg := range s.messages {
		if msg.HeapID == heapID {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) MessagesAfter(heapID string, afterNumber int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []*Message
	for _, msg := range s.messages {
		if msg.HeapID == heapID && msg.MessageNumber > afterNumber {
			cp := *msg
			msgs = append(msgs, &cp)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].MessageNumber < msgs[j].MessageNumber })
	return msgs, nil
}

func (s *MemStore) PutAction(action *CompactingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *action
	s.actions[action.ID] = &cp
	return nil
}

func (s *MemStore) GetAction(id string) (*CompactingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action, ok := s.actions[id]; ok {
		cp := *action
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) ActionForHeap(heapID string) (*CompactingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, action := range s.actions {
		if action.HeapID == heapID {
			cp := *action
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) OrphanedActions() ([]*CompactingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var actions []*CompactingAction
	for _, action := range s.actions {
		if action.HeapID == "" {
			cp := *action
			actions = append(actions, &cp)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions, nil
}

func (s *MemStore) PutWatch(boundaryID, actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchlist[boundaryID] = actionID
	return nil
}

func (s *MemStore) GetWatch(boundaryID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchlist[boundaryID], nil
}

func (s *MemStore) DeleteWatch(boundaryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchlist, boundaryID)
	return nil
}

func (s *MemStore) Watchlist() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.watchlist))
	for k, v := range s.watchlist {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) SplitHeap(newHeap *ContextHeap, moved []*Message, action *CompactingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap := *newHeap
	s.heaps[newHeap.ID] = &heap
	for _, msg := range moved {
		cp := *msg
		s.messages[msg.ID] = &cp
	}
	if action != nil {
		act := *action
		s.actions[action.ID] = &act
	}
	return nil
}

func (s *MemStore) PutSourceFile(sf *SourceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sf
	s.sourceFiles[sf.Path] = &cp
	return nil
}

func (s *MemStore) GetSourceFileByPath(path string) (*SourceFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sf, ok := s.sourceFiles[path]; ok {
		cp := *sf
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) PutAttachment(att *Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *att
	s.attachments[att.ID] = &cp
	return nil
}

func (s *MemStore) AttachmentsFor(entityKind, entityID string) ([]*Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var atts []*Attachment
	for _, att := range s.attachments {
		if att.EntityKind == entityKind && att.EntityID == entityID {
			cp := *att
			atts = append(atts, &cp)
		}
	}
	sort.Slice(atts, func(i, j int) bool { return atts[i].CreatedAt.Before(atts[j].CreatedAt) })
	return atts, nil
}

func (s *MemStore) SaveDriverState(key string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driverState[key] = append([]byte(nil), state...)
	return nil
}

func (s *MemStore) LoadDriverState(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.driverState[key]; ok {
		return append([]byte(nil), state...), nil
	}
	return nil, nil
}

func (s *MemStore) Close() error {
	return nil
}
