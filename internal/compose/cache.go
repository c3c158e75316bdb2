// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package compose

import (
	"sync"
)

type cacheKey struct {
	document string
	purpose  Purpose
}

// Cache holds composed query templates, indexed by document type name and
// purpose. Templates are never invalidated since document types do not change
// once the schema is loaded.
//
// Composing the same template twice yields identical text, so concurrent
// misses for one key are allowed to compose redundantly. The first stored
// template wins.
//
// The mutex must be locked when accessing templates.
type Cache struct {
	templates map[cacheKey]string
	mutex     sync.RWMutex
}

// NewCache returns an empty template cache.
func NewCache() *Cache {
	return &Cache{templates: map[cacheKey]string{}}
}

// lookup returns the template of the document type for the purpose, if it
// has been composed.
func (c *Cache) lookup(document string, p Purpose) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	text, ok := c.templates[cacheKey{document: document, purpose: p}]
	return text, ok
}

// store caches the template and returns the cached template, which is text
// unless another caller stored one first.
func (c *Cache) store(document string, p Purpose, text string) string {
	key := cacheKey{document: document, purpose: p}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if existing, ok := c.templates[key]; ok {
		return existing
	}
	c.templates[key] = text
	return text
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.templates)
}
