package main

import (
	"github.com/ChiefPay/chiefpay-go/cli"
)

func main() {
	cli.Execute()
}
