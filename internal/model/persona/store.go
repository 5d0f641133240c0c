package persona

import "strings"

// Store 供 handler 与会话注册表查询助手配置
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore 进程内只读目录，按注册顺序列出，按 ID 索引
type MemoryStore struct {
	order []string
	byID  map[string]Persona
}

// NewMemoryStore 重复 ID 保留第一个，空 ID 忽略
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]Persona, len(items))}
	for _, p := range items {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		if _, dup := s.byID[id]; dup {
			continue
		}
		p.ID = id
		s.byID[id] = p
		s.order = append(s.order, id)
	}
	return s
}

func (s *MemoryStore) List() []Persona {
	out := make([]Persona, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	p, ok := s.byID[strings.TrimSpace(id)]
	return p, ok
}
