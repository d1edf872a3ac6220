package app

import "sync"

// connections maps player identity to the connection currently speaking for it.
// A reconnect swaps the binding; the old connection keeps its reverse entry so that
// its eventual close can be recognised as stale.
type connections struct {
	mu       sync.RWMutex
	byPlayer map[string]Conn
	byConn   map[string]string
}

func newConnections() *connections {
	return &connections{
		byPlayer: make(map[string]Conn),
		byConn:   make(map[string]string),
	}
}

func (c *connections) bind(playerID string, conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byPlayer[playerID] = conn
	c.byConn[conn.ID()] = playerID
}

func (c *connections) get(playerID string) (Conn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.byPlayer[playerID]
	return conn, ok
}

// playerFor returns the player connID speaks for. A connection replaced by a
// reconnect speaks for nobody.
func (c *connections) playerFor(connID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byConn[connID]
	if !ok {
		return "", false
	}
	if conn, bound := c.byPlayer[id]; !bound || conn.ID() != connID {
		return "", false
	}
	return id, true
}

// unbindConn forgets connID. current reports whether it was still the live binding
// of its player, in which case the player binding is dropped too.
func (c *connections) unbindConn(connID string) (playerID string, current bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	playerID, ok := c.byConn[connID]
	if !ok {
		return "", false
	}
	delete(c.byConn, connID)
	if conn, ok := c.byPlayer[playerID]; ok && conn.ID() == connID {
		delete(c.byPlayer, playerID)
		return playerID, true
	}
	return playerID, false
}
