/*
Command signer serves the secure signer.

It opens the local key-value store, connects to the trust service and serves
the /frame websocket endpoint on which hosts run the messenger protocol.

Usage:

	signer --trust-url https://trust.example \
	       --storage 'file:///var/lib/signer?passphrase_env=SIGNER_PASSPHRASE' \
	       --target-origin https://wallet.example

Flags override values from the optional --config YAML file.
*/
package main
