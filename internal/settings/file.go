package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	yaml "go.yaml.in/yaml/v3"

	"shellglance/internal/config"
	"shellglance/internal/fswatch"
	logx "shellglance/pkg/logx"
)

// fileStore keeps settings in one JSON or YAML document (format chosen by
// extension). Values may be scalars or, for structured keys such as
// "commands", native lists; non-string values are exposed as their JSON form.
//
// Every Set rewrites the whole document atomically (temp file + rename).
type fileStore struct {
	hub

	path string
	yaml bool
	log  logx.Logger

	mu     sync.RWMutex
	doc    map[string]any
	vals   values
	closed bool
}

func openFile(cfg Config, log logx.Logger) (*fileStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("settings.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	s := &fileStore{
		hub:  hub{log: log},
		path: path,
		yaml: ext == ".yaml" || ext == ".yml",
		log:  log,
	}
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	vals, err := canonicalize(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.doc = doc
	s.vals = vals
	return s, nil
}

// read parses the document. A missing or empty file is an empty document.
func (s *fileStore) read() (map[string]any, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return map[string]any{}, nil
	}

	var doc map[string]any
	if s.yaml {
		var raw any
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("yaml unmarshal: %w", err)
		}
		m, ok := config.NormalizeYAML(raw).(map[string]any)
		if !ok {
			return nil, errors.New("settings document must be a mapping")
		}
		doc = m
	} else if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func (s *fileStore) GetString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vals.getString(key)
}

func (s *fileStore) GetInt(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vals.getInt(key)
}

func (s *fileStore) SetString(key, value string) error {
	return s.set(key, value)
}

func (s *fileStore) SetInt(key string, value int) error {
	return s.set(key, value)
}

func (s *fileStore) set(key string, raw any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	// Keep structured keys structured when the document already stores them natively
	// (a YAML list stays a YAML list after an edit).
	if str, ok := raw.(string); ok {
		if _, native := s.doc[key].([]any); native || (key == KeyCommands && s.yaml) {
			var v any
			if err := json.Unmarshal([]byte(str), &v); err == nil {
				raw = v
			}
		}
	}
	canon, err := canonValue(raw)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("key %q: %w", key, err)
	}
	if old, ok := s.vals[key]; ok && old == canon {
		s.mu.Unlock()
		return nil
	}

	doc := make(map[string]any, len(s.doc)+1)
	for k, v := range s.doc {
		doc[k] = v
	}
	doc[key] = raw
	if err := s.writeLocked(doc); err != nil {
		s.mu.Unlock()
		return err
	}
	s.doc = doc
	s.vals[key] = canon
	s.mu.Unlock()

	s.emit(key)
	return nil
}

func (s *fileStore) writeLocked(doc map[string]any) error {
	var (
		b   []byte
		err error
	)
	if s.yaml {
		b, err = yaml.Marshal(doc)
	} else {
		b, err = json.MarshalIndent(doc, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// reload re-reads the document and emits one signal per changed key.
// A document that fails to parse is logged and ignored (last good values stay).
func (s *fileStore) reload() {
	doc, err := s.read()
	if err == nil {
		var vals values
		vals, err = canonicalize(doc)
		if err == nil {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			changed := diff(s.vals, vals)
			s.doc = doc
			s.vals = vals
			s.mu.Unlock()

			if len(changed) > 0 {
				s.log.Debug("settings reloaded", logx.String("path", s.path), logx.Any("changed", changed))
			}
			s.emitAll(changed)
			return
		}
	}
	s.log.Warn("settings reload failed; keeping previous values", logx.String("path", s.path), logx.Err(err))
}

func (s *fileStore) Watch(ctx context.Context) error {
	return fswatch.Watch(ctx, s.path, fswatch.Options{Log: s.log}, s.reload)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// canonicalize converts document values into their string forms.
func canonicalize(doc map[string]any) (values, error) {
	out := make(values, len(doc))
	for k, v := range doc {
		if v == nil {
			continue
		}
		c, err := canonValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

func canonValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
