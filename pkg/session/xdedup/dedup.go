// Package xdedup 提供在途请求去重：同一 key 的新请求取消旧请求（后发者胜）。
//
// key 由 [Key] 计算：METHOD:baseURL+path?排序后的参数:规范化的请求体。
// 每个 key 同一时刻最多一个在途条目；被取代的请求收到 [xapierr.ErrCanceled]
// 作为取消原因（context.Cause）。
package xdedup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/omeyang/xadmin/pkg/session/xapierr"
)

// Key 计算请求的去重 key。
// params 按 key 排序编码；JSON 请求体重新序列化以消除字段顺序差异，非 JSON 原样使用。
func Key(method, baseURL, path string, params url.Values, body []byte) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(baseURL)
	b.WriteString(path)
	b.WriteByte('?')
	b.WriteString(params.Encode())
	b.WriteByte(':')
	b.Write(canonicalBody(body))
	return b.String()
}

// canonicalBody 规范化请求体。
func canonicalBody(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	// 数字按原文保留，大整数不丢精度
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return trimmed
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return trimmed
	}
	// encoding/json 对 map 按 key 排序输出
	out, err := json.Marshal(v)
	if err != nil {
		return trimmed
	}
	return out
}

// Fingerprint 返回 key 的短指纹，用于日志与指标，避免输出完整请求体。
func Fingerprint(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 16)
}

// Release 释放条目。只有仍是该 key 的当前持有者时才会删除条目；可重复调用。
type Release func()

type entry struct {
	cancel context.CancelCauseFunc
}

// Deduplicator 在途请求表。零值不可用，使用 [New] 创建。
type Deduplicator struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New 创建 Deduplicator。
func New() *Deduplicator {
	return &Deduplicator{entries: make(map[string]*entry)}
}

// Acquire 为 key 注册新的在途请求。
// 已有同 key 条目时先以 ErrCanceled 取消旧请求，再登记新请求。
// 返回的 context 在被后续同 key 请求取代时取消。
func (d *Deduplicator) Acquire(ctx context.Context, key string) (context.Context, Release) {
	child, cancel := context.WithCancelCause(ctx)
	e := &entry{cancel: cancel}

	d.mu.Lock()
	if prev, ok := d.entries[key]; ok {
		prev.cancel(xapierr.ErrCanceled)
	}
	d.entries[key] = e
	d.mu.Unlock()

	var once sync.Once
	return child, func() {
		once.Do(func() {
			d.mu.Lock()
			if cur, ok := d.entries[key]; ok && cur == e {
				delete(d.entries, key)
			}
			d.mu.Unlock()
			// 释放 context 资源；请求已结束，原因不再被观察
			cancel(context.Canceled)
		})
	}
}

// Cancel 取消指定 key 的在途请求。
func (d *Deduplicator) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	if !ok {
		return false
	}
	e.cancel(xapierr.ErrCanceled)
	delete(d.entries, key)
	return true
}

// CancelAll 取消全部在途请求，返回取消数量。登出时使用。
func (d *Deduplicator) CancelAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.entries)
	for key, e := range d.entries {
		e.cancel(xapierr.ErrCanceled)
		delete(d.entries, key)
	}
	return n
}

// Len 返回在途条目数。
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Has 判断 key 是否有在途条目。
func (d *Deduplicator) Has(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}
