// Command totpsecret generates a shared TOTP secret for the demo unlock
// flow. Save the secret as DEMO_TOTP_SECRET on the server and scan the
// otpauth URI with an authenticator app.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/pquerna/otp/totp"
)

func main() {
	issuer := flag.String("issuer", "medialoom", "issuer shown in the authenticator app")
	account := flag.String("account", "demo-admin", "account name shown in the authenticator app")
	flag.Parse()

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      *issuer,
		AccountName: *account,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("DEMO_TOTP_SECRET=%s\n", key.Secret())
	fmt.Printf("otpauth URI: %s\n", key.URL())
}
