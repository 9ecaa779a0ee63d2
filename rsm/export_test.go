// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

// PendingRequests reports the size of the correlator's pending table. For
// tests in rsm_test.
func PendingRequests(p *Protocol) int {
	p.mu.Lock()
	corr := p.corr
	p.mu.Unlock()
	if corr == nil {
		return 0
	}
	return corr.pendingLen()
}
