// Package model содержит доменные сущности сервиса учёта упаковки.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleWarehouseman Role = "warehouseman"
)

// Valid сообщает, известна ли роль системе.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleWarehouseman
}

// User представляет зарегистрированного пользователя склада.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Actor описывает аутентифицированного инициатора запроса.
type Actor struct {
	ID   int64
	Role Role
}

// ContainerStatus описывает статус упаковки контейнера.
type ContainerStatus string

const (
	StatusNew     ContainerStatus = "new"
	StatusPacking ContainerStatus = "packing"
	StatusPacked  ContainerStatus = "packed"
)

// Valid сообщает, известен ли статус системе.
func (s ContainerStatus) Valid() bool {
	return s == StatusNew || s == StatusPacking || s == StatusPacked
}

// Container описывает транспортный контейнер.
// PackedAt заполнен тогда и только тогда, когда Status == StatusPacked.
type Container struct {
	ID        int64
	Name      string
	Status    ContainerStatus
	OwnerID   int64
	PackedAt  *time.Time
	CreatedAt time.Time
}

// CodeRecord описывает DM-код из справочника кодов. Справочник
// принадлежит отдельной подсистеме и доступен только на чтение.
type CodeRecord struct {
	Code        string    `json:"dm_code"`
	Article     string    `json:"article"`
	InvoiceDate time.Time `json:"invoice_date"`
	PageNumber  int       `json:"page_number"`
}

// CodeBinding описывает привязку DM-кода к контейнеру. Код может быть
// привязан не более чем к одному контейнеру одновременно.
type CodeBinding struct {
	Code        string
	ContainerID int64
	BoundBy     int64
	BoundAt     time.Time
}

// ManifestGroup объединяет коды одного артикула внутри манифеста.
type ManifestGroup struct {
	Article string       `json:"article"`
	Codes   []CodeRecord `json:"codes"`
	Count   int          `json:"count"`
}

// Manifest представляет сводную комплектацию одного контейнера.
// Строится на лету и никогда не сохраняется.
type Manifest struct {
	ContainerID   int64           `json:"container_id"`
	ContainerName string          `json:"container_name"`
	Status        ContainerStatus `json:"container_status"`
	PackedAt      *time.Time      `json:"packed_at,omitempty"`
	Groups        []ManifestGroup `json:"groups"`
}
