// Package session 私聊多步输入的会话状态
package session

import (
	"sync"
	"time"
)

// State 会话状态类型
type State string

const (
	StateNone        State = ""
	StateWaitingCode State = "waiting_code" // 等待输入订阅码

	// 添加按钮向导
	StateButtonText     State = "button_text"
	StateButtonCommand  State = "button_command"
	StateButtonResponse State = "button_response"
)

// ButtonDraft 添加按钮向导已收集的内容
type ButtonDraft struct {
	Text    string
	Command string
}

type userSession struct {
	state     State
	draft     ButtonDraft
	updatedAt time.Time
}

// Manager 会话管理器，会话在 ttl 内无操作即失效
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*userSession
	ttl      time.Duration
	now      func() time.Time
}

var (
	instance *Manager
	once     sync.Once
)

// NewManager 创建会话管理器，不启动后台清理
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[int64]*userSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetManager 获取会话管理器单例
func GetManager() *Manager {
	once.Do(func() {
		instance = NewManager(10 * time.Minute)
		go instance.cleanup()
	})
	return instance
}

// live 返回未过期的会话，过期的顺手删除；调用方持有锁
func (m *Manager) live(userID int64) *userSession {
	s, ok := m.sessions[userID]
	if !ok {
		return nil
	}
	if m.now().Sub(s.updatedAt) > m.ttl {
		delete(m.sessions, userID)
		return nil
	}
	return s
}

// SetState 进入新状态，已收集的草稿保留
func (m *Manager) SetState(userID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.live(userID)
	if s == nil {
		s = &userSession{}
		m.sessions[userID] = s
	}
	s.state = state
	s.updatedAt = m.now()
}

// GetState 获取用户状态，过期会话视为无状态
func (m *Manager) GetState(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.live(userID); s != nil {
		return s.state
	}
	return StateNone
}

// Advance 修改草稿并切换到下一状态；会话已失效时返回 false
func (m *Manager) Advance(userID int64, next State, edit func(d *ButtonDraft)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.live(userID)
	if s == nil {
		return false
	}
	if edit != nil {
		edit(&s.draft)
	}
	s.state = next
	s.updatedAt = m.now()
	return true
}

// TakeDraft 取出草稿并结束会话
func (m *Manager) TakeDraft(userID int64) (ButtonDraft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.live(userID)
	if s == nil {
		return ButtonDraft{}, false
	}
	delete(m.sessions, userID)
	return s.draft, true
}

// ClearSession 清除用户会话
func (m *Manager) ClearSession(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// cleanup 定期清理过期会话
func (m *Manager) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.purge()
	}
}

func (m *Manager) purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for userID := range m.sessions {
		if m.live(userID) == nil {
			n++
		}
	}
	return n
}
