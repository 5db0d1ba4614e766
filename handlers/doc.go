/*
Package handlers implements the signer operations served over the messenger
channel.

Each operation is bound to the inbound event "request:<op>" and answers on
"response:<op>":

	create-signer   begin onboarding with the trust service, unless a device
	                share already exists for the signer
	send-otp        decrypt the one-time code, exchange it for a fresh split,
	                store the device share and return the new public key
	get-public-key  reconstruct the master secret and return the public key
	sign            reconstruct, derive the key pair and sign the payload

Every request is an envelope

	{"version": 1, "authData": {"jwt": "...", "apiKey": "..."}, "data": {...}}

and the version is checked before anything else. Results are wrapped in a
Response. Conditions the host application can act on (tampering, missing
onboarding) are answered with status "error" and a code; any other failure
is returned to the messenger and surfaced to the caller as a failed request.

All handlers are wrapped with Timed, which logs the elapsed time and records
it in the handler duration histogram. Master secrets and private keys are
wiped before a handler returns.
*/
package handlers
