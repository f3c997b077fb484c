package pda

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/counter"
	"github.com/spf13/cobra"
)

var (
	Cmd = cobra.Command{
		Use:   "pda",
		Short: "Derive the counter and token authority addresses",
		Args:  cobra.NoArgs,
		RunE:  run,
	}

	programId string
	owner     string
)

func init() {
	Cmd.Flags().StringVar(&programId, "program", counter.ProgramID.String(), "Counter program id")
	Cmd.Flags().StringVar(&owner, "owner", "", "Owner of the counter record")
	_ = Cmd.MarkFlagRequired("owner")
}

func run(c *cobra.Command, _ []string) error {
	program, err := solana.PublicKeyFromBase58(programId)
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}

	counterAddr, counterBump, err := counter.DeriveCounterAddress(program, ownerKey)
	if err != nil {
		return err
	}
	authorityAddr, authorityBump, err := counter.DeriveAuthorityAddress(program)
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "counter:   %s (bump %d)\n", counterAddr, counterBump)
	fmt.Fprintf(out, "authority: %s (bump %d)\n", authorityAddr, authorityBump)
	return nil
}
