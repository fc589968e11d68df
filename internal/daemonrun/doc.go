// Package daemonrun wires configuration, logging, the library store, the
// transfer clients, and the finalization worker into a running daemon. The
// harvestd binary and "harvest daemon run" share it, and the CLI reuses its
// Sources and Acquirer builders for one-shot commands.
package daemonrun
