// Package export renders dashboard data as downloadable workbooks.
package export

import (
	"context"
	"fmt"

	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/workspace"
	"github.com/xuri/excelize/v2"
)

const contactsSheet = "Contacts"

var contactHeaders = []string{"Name", "Email", "Phone", "Company", "Role", "Created"}

// Service exports member content
type Service struct {
	content *workspace.Service
}

// NewService creates an export service
func NewService(content *workspace.Service) *Service {
	return &Service{content: content}
}

// ExportContacts renders a dashboard's contacts as an xlsx workbook
func (s *Service) ExportContacts(ctx context.Context, userID, dashboardID string) (*excelize.File, error) {
	contacts, err := s.content.ListContacts(ctx, userID, dashboardID)
	if err != nil {
		return nil, err
	}
	return ContactsWorkbook(contacts)
}

// ContactsWorkbook builds the xlsx file for a contact list
func ContactsWorkbook(contacts []models.Contact) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", contactsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, header := range contactHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(contactsSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, c := range contacts {
		values := []interface{}{
			c.Name,
			c.Email,
			c.Phone,
			c.Company,
			c.Role,
			c.CreatedAt.Format("2006-01-02"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(contactsSheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	return f, nil
}
