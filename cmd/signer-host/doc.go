/*
Command signer-host plays the host side of the signer protocol from a
terminal. It connects to the /frame endpoint, acknowledges the signer's
handshake and sends one request.

	signer-host --jwt $JWT --api-key $KEY create-signer user@example.com
	signer-host --jwt $JWT --api-key $KEY send-otp 123456
	signer-host --jwt $JWT --api-key $KEY --key-type secp256k1 get-public-key
	signer-host --jwt $JWT --api-key $KEY --key-type secp256k1 sign --hash keccak256 "hello"

Structured error responses exit with status 2.
*/
package main
