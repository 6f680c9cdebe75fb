package cpu

import "fmt"

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// Disassemble renders a single 32-bit instruction word as a short
// mnemonic line, for the GDB query surface and TUI status display. It
// never fails: an encoding it does not recognize renders as a raw
// word.
func Disassemble(word uint32) string {
	in := Decode(word)
	rd, rs1, rs2 := regNames[in.Rd], regNames[in.Rs1], regNames[in.Rs2]

	switch in.Opcode {
	case opLUI:
		return fmt.Sprintf("lui %s, 0x%x", rd, uint32(in.ImmU)>>12)
	case opAUIPC:
		return fmt.Sprintf("auipc %s, 0x%x", rd, uint32(in.ImmU)>>12)
	case opJAL:
		return fmt.Sprintf("jal %s, %d", rd, in.ImmJ)
	case opJALR:
		return fmt.Sprintf("jalr %s, %d(%s)", rd, in.ImmI, rs1)
	case opBranch:
		names := map[uint32]string{0: "beq", 1: "bne", 4: "blt", 5: "bge", 6: "bltu", 7: "bgeu"}
		if name, ok := names[in.Funct3]; ok {
			return fmt.Sprintf("%s %s, %s, %d", name, rs1, rs2, in.ImmB)
		}
	case opLoad:
		names := map[uint32]string{0: "lb", 1: "lh", 2: "lw", 4: "lbu", 5: "lhu"}
		if name, ok := names[in.Funct3]; ok {
			return fmt.Sprintf("%s %s, %d(%s)", name, rd, in.ImmI, rs1)
		}
	case opStore:
		names := map[uint32]string{0: "sb", 1: "sh", 2: "sw"}
		if name, ok := names[in.Funct3]; ok {
			return fmt.Sprintf("%s %s, %d(%s)", name, rs2, in.ImmS, rs1)
		}
	case opOpImm:
		if in.Funct3 == 1 {
			return fmt.Sprintf("slli %s, %s, %d", rd, rs1, in.Rs2&0x1F)
		}
		if in.Funct3 == 5 {
			if in.Funct7 == 0b0100000 {
				return fmt.Sprintf("srai %s, %s, %d", rd, rs1, in.Rs2&0x1F)
			}
			return fmt.Sprintf("srli %s, %s, %d", rd, rs1, in.Rs2&0x1F)
		}
		names := map[uint32]string{0: "addi", 2: "slti", 3: "sltiu", 4: "xori", 6: "ori", 7: "andi"}
		if name, ok := names[in.Funct3]; ok {
			return fmt.Sprintf("%s %s, %s, %d", name, rd, rs1, in.ImmI)
		}
	case opOp:
		switch {
		case in.Funct3 == 0 && in.Funct7 == 0:
			return fmt.Sprintf("add %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 0 && in.Funct7 == 0b0100000:
			return fmt.Sprintf("sub %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 1:
			return fmt.Sprintf("sll %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 2:
			return fmt.Sprintf("slt %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 3:
			return fmt.Sprintf("sltu %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 4:
			return fmt.Sprintf("xor %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 5 && in.Funct7 == 0:
			return fmt.Sprintf("srl %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 5 && in.Funct7 == 0b0100000:
			return fmt.Sprintf("sra %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 6:
			return fmt.Sprintf("or %s, %s, %s", rd, rs1, rs2)
		case in.Funct3 == 7:
			return fmt.Sprintf("and %s, %s, %s", rd, rs1, rs2)
		}
	case opMiscMem:
		return "fence"
	case opSystem:
		if in.Funct3 == 0 {
			switch uint32(in.ImmI) & 0xFFF {
			case 0:
				return "ecall"
			case 1:
				return "ebreak"
			}
		}
		names := map[uint32]string{1: "csrrw", 2: "csrrs", 3: "csrrc", 5: "csrrwi", 6: "csrrsi", 7: "csrrci"}
		if name, ok := names[in.Funct3]; ok {
			return fmt.Sprintf("%s %s, 0x%x, %s", name, rd, in.Raw>>20, rs1)
		}
	}
	return fmt.Sprintf(".word 0x%08x", word)
}
