// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package verify checks that a workload run was ingested losslessly.
//
// Three independent channels are inspected after the settle delay:
// the ingester's own log, the log server's log, and the exported CLEF
// record stream. The checks never short-circuit; a run with a broken
// export and a broken ingester log reports both problems, because a
// CI failure is diagnosed from exactly this output.
package verify
