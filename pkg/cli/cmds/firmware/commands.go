package firmware

import (
	"context"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/chiplink/pkg/bankswap"
	"github.com/robotalks/chiplink/pkg/cli/sh"
	"github.com/robotalks/chiplink/pkg/env"
	"github.com/robotalks/chiplink/pkg/flash"
)

func loadImage(c *ishell.Context) (*flash.Image, error) {
	if len(c.Args) < 1 {
		return nil, fmt.Errorf("FILE required")
	}
	return flash.LoadImage(sh.ShellFrom(c).Node.Driver.Geometry(), c.Args[0])
}

func progress(c *ishell.Context) bankswap.Option {
	s := sh.ShellFrom(c)
	return bankswap.WithProgress(func(p bankswap.Progress) {
		if s.OutputJSON {
			return
		}
		c.Printf("\r%-11s %s %3.0f%%", p.Phase, p.Bank, p.Percentage)
		if p.Phase == bankswap.PhaseStaged || p.Phase == bankswap.PhaseSwitching {
			c.Println()
		}
	})
}

type bankInfo struct {
	Bank     string `json:"bank"`
	Active   bool   `json:"active"`
	HasImage bool   `json:"has_image"`
	SP       uint32 `json:"sp"`
	PC       uint32 `json:"pc"`
}

func banks(drv *flash.Driver) []bankInfo {
	current := drv.CurrentBank()
	var infos []bankInfo
	for _, bank := range []flash.Bank{flash.Bank0, flash.Bank1} {
		info := bankInfo{Bank: bank.String(), Active: bank == current, HasImage: drv.HasImage(bank)}
		if info.HasImage {
			info.SP, info.PC, _ = drv.Vectors(bank)
		}
		infos = append(infos, info)
	}
	return infos
}

// selectBank programs the boot selector and resets, so the live bank
// never disagrees with the selector without a pending reset.
func selectBank(node *env.Node, bank flash.Bank) (bankswap.Exit, error) {
	if err := node.Driver.SetBootSelector(bank); err != nil {
		return bankswap.Exit{}, err
	}
	return node.Reboot(false), nil
}

var (
	// UpdateCmd updates the inactive bank and boots into it.
	UpdateCmd = ishell.Cmd{
		Name:    "update",
		Aliases: []string{"u"},
		Help:    "FILE",
		Func: func(c *ishell.Context) {
			img, err := loadImage(c)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			exit, err := s.Node.Update(context.Background(), img, progress(c))
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c,
				fmt.Sprintf("booted %s: %s", s.Node.Driver.CurrentBank(), exit.Kind),
				map[string]interface{}{
					"bank":     s.Node.Driver.CurrentBank().String(),
					"exit":     exit.Kind.String(),
					"checksum": img.Checksum(),
				})
		},
	}

	// StageCmd writes and verifies an image without switching banks.
	StageCmd = ishell.Cmd{
		Name: "stage",
		Help: "FILE",
		Func: func(c *ishell.Context) {
			img, err := loadImage(c)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			u := bankswap.NewUpdater(s.Node.Driver, s.Node.Platform, progress(c))
			bank, err := u.Stage(context.Background(), img)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, fmt.Sprintf("staged %s", bank), map[string]interface{}{
				"bank":     bank.String(),
				"size":     img.Size(),
				"checksum": img.Checksum(),
			})
		},
	}

	// BanksCmd shows the banks.
	BanksCmd = ishell.Cmd{
		Name:    "banks",
		Aliases: []string{"b"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			infos := banks(s.Node.Driver)
			if s.OutputJSON {
				s.Print(c, "", infos)
				return
			}
			for _, info := range infos {
				mark := " "
				if info.Active {
					mark = "*"
				}
				if !info.HasImage {
					c.Printf("%s %s empty\n", mark, info.Bank)
					continue
				}
				c.Printf("%s %s sp=%08x pc=%08x\n", mark, info.Bank, info.SP, info.PC)
			}
			c.Printf("selector %s, state %s\n", s.Node.Driver.BootSelector(), s.Node.Controller.State())
		},
	}

	// SelectCmd programs the boot selector and resets.
	SelectCmd = ishell.Cmd{
		Name: "select",
		Help: "0|1",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("bank required"))
				return
			}
			var bank flash.Bank
			switch c.Args[0] {
			case "0":
				bank = flash.Bank0
			case "1":
				bank = flash.Bank1
			default:
				c.Err(fmt.Errorf("invalid bank: %s", c.Args[0]))
				return
			}
			s := sh.ShellFrom(c)
			exit, err := selectBank(s.Node, bank)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, fmt.Sprintf("booted %s: %s", s.Node.Driver.CurrentBank(), exit.Kind),
				map[string]string{
					"selector": bank.String(),
					"bank":     s.Node.Driver.CurrentBank().String(),
					"exit":     exit.Kind.String(),
				})
		},
	}

	// ResetCmd resets the local node.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "[update]",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			exit := s.Node.Reboot(len(c.Args) > 0 && c.Args[0] == "update")
			s.Print(c, fmt.Sprintf("%s, mode %s", exit.Kind, s.Node.Supervisor.Mode()),
				map[string]string{
					"exit": exit.Kind.String(),
					"mode": s.Node.Supervisor.Mode().String(),
				})
		},
	}

	// CRCCmd prints the CRC-32 of an image file.
	CRCCmd = ishell.Cmd{
		Name: "crc",
		Help: "FILE",
		Func: func(c *ishell.Context) {
			img, err := loadImage(c)
			if err != nil {
				c.Err(err)
				return
			}
			sh.ShellFrom(c).Print(c,
				fmt.Sprintf("%08x %d bytes at %#x", img.Checksum(), img.Size(), img.Offset),
				map[string]uint32{"checksum": img.Checksum(), "size": img.Size(), "offset": img.Offset})
		},
	}
)

func init() {
	sh.AddCmds(
		&UpdateCmd,
		&StageCmd,
		&BanksCmd,
		&SelectCmd,
		&ResetCmd,
		&CRCCmd,
	)
}
