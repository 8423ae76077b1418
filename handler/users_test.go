package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"madrasah-backend/entity"
	"madrasah-backend/errs"
	"madrasah-backend/log"
)

var _ = Describe("Users", func() {
	var ts *testServer

	BeforeEach(func() {
		ts = newTestServer()
	})

	Describe("Create user", func() {
		Specify("happy path", func() {
			w := ts.do(http.MethodPost, "/users", `{"email":"rahim@example.com","role":"student","name":"Rahim","class":"Eight","roll":7}`)
			Expect(w.Code).To(Equal(http.StatusOK))

			ack := decodeObject(w)
			Expect(ack["acknowledged"]).To(BeTrue())
			Expect(ack["insertedId"]).To(HaveLen(24))

			stored := ts.users(entity.Document{"email": "rahim@example.com"})
			Expect(stored).To(HaveLen(1))
			Expect(stored[0]).To(HaveKeyWithValue("name", "Rahim"))
			Expect(stored[0]).To(HaveKeyWithValue("class", "Eight"))
			Expect(stored[0]).To(HaveKeyWithValue("roll", 7.0))
			Expect(stored[0]["_id"].(primitive.ObjectID).Hex()).To(Equal(ack["insertedId"]))

			activities := ts.recorder.Activities()
			Expect(activities).To(HaveLen(1))
			Expect(activities[0].RoutingKey()).To(Equal("users.created"))
			Expect(activities[0].Role).To(Equal(entity.RoleStudent))
		})

		Specify("existing email is not written twice", func() {
			ts.createUser("karim@example.com", "teacher")

			w := ts.do(http.MethodPost, "/users", `{"email":"karim@example.com","role":"admin","name":"Impostor"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeObject(w)).To(Equal(map[string]interface{}{"message": "user already exists"}))

			stored := ts.users(entity.Document{"email": "karim@example.com"})
			Expect(stored).To(HaveLen(1))
			Expect(stored[0]).To(HaveKeyWithValue("role", "teacher"))
			Expect(ts.recorder.Activities()).To(HaveLen(1))
		})

		Specify("concurrent creates with the same email leave one document", func() {
			const n = 20
			var wg sync.WaitGroup
			codes := make(chan int, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					w := ts.do(http.MethodPost, "/users", fmt.Sprintf(`{"email":"race@example.com","name":"racer %d"}`, i))
					codes <- w.Code
				}(i)
			}
			wg.Wait()
			close(codes)

			for code := range codes {
				Expect(code).To(Equal(http.StatusOK))
			}
			Expect(ts.users(entity.Document{"email": "race@example.com"})).To(HaveLen(1))
		})

		Specify("client supplied _id is ignored", func() {
			w := ts.do(http.MethodPost, "/users", `{"_id":"mine","email":"id@example.com"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			stored := ts.users(entity.Document{"email": "id@example.com"})
			Expect(stored[0]["_id"]).To(BeAssignableToTypeOf(primitive.ObjectID{}))
		})

		Specify("sad path - unknown role", func() {
			w := ts.do(http.MethodPost, "/users", `{"email":"x@example.com","role":"principal"}`)
			Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrInvalidRole))
			Expect(ts.users(nil)).To(BeEmpty())
		})

		Specify("sad path - missing email", func() {
			w := ts.do(http.MethodPost, "/users", `{"name":"nobody"}`)
			Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrEmailRequired))
		})

		Specify("sad path - malformed email", func() {
			w := ts.do(http.MethodPost, "/users", `{"email":"not-an-address"}`)
			Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrEmailAddressFormat))
		})

		Specify("sad path - body is not an object", func() {
			for _, body := range []string{`[1,2]`, `null`, `"x"`, `{`} {
				w := ts.do(http.MethodPost, "/users", body)
				Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrInvalidBody), body)
			}
		})
	})

	Describe("Read users", func() {
		var adminID, teacherID, studentID string

		BeforeEach(func() {
			adminID = ts.createUser("admin@example.com", "admin")
			teacherID = ts.createUser("teacher@example.com", "teacher")
			studentID = ts.createUser("student@example.com", "student")
		})

		Specify("list all", func() {
			w := ts.do(http.MethodGet, "/users", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(ids(decodeList(w))).To(ConsistOf(adminID, teacherID, studentID))
		})

		Specify("list all is idempotent", func() {
			first := ids(decodeList(ts.do(http.MethodGet, "/users", "")))
			second := ids(decodeList(ts.do(http.MethodGet, "/users", "")))
			Expect(second).To(ConsistOf(first))
		})

		Specify("list by role", func() {
			Expect(ids(decodeList(ts.do(http.MethodGet, "/users/admins", "")))).To(ConsistOf(adminID))
			Expect(ids(decodeList(ts.do(http.MethodGet, "/users/teachers", "")))).To(ConsistOf(teacherID))
			Expect(ids(decodeList(ts.do(http.MethodGet, "/users/students", "")))).To(ConsistOf(studentID))
			Expect(ids(decodeList(ts.do(http.MethodGet, "/users?role=teacher", "")))).To(ConsistOf(teacherID))
		})

		Specify("empty role list is an empty array", func() {
			ts = newTestServer()
			w := ts.do(http.MethodGet, "/users/admins", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`[]`))
		})

		Specify("sad path - unknown role filter", func() {
			w := ts.do(http.MethodGet, "/users?role=janitor", "")
			Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrInvalidRole))
		})

		Specify("get by id", func() {
			w := ts.do(http.MethodGet, "/users/"+teacherID, "")
			Expect(w.Code).To(Equal(http.StatusOK))
			u := decodeObject(w)
			Expect(u).To(HaveKeyWithValue("_id", teacherID))
			Expect(u).To(HaveKeyWithValue("email", "teacher@example.com"))
		})

		Specify("get by id - not found", func() {
			w := ts.do(http.MethodGet, "/users/"+primitive.NewObjectID().Hex(), "")
			Expect(w).To(RespondWithBackendError(http.StatusNotFound, errs.ErrNotFound))
		})

		Specify("get by id - malformed id", func() {
			w := ts.do(http.MethodGet, "/users/12345", "")
			Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrInvalidID))
		})

		Specify("get by email", func() {
			w := ts.do(http.MethodGet, "/user/student@example.com", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeObject(w)).To(HaveKeyWithValue("_id", studentID))

			w = ts.do(http.MethodGet, "/user/ghost@example.com", "")
			Expect(w).To(RespondWithBackendError(http.StatusNotFound, errs.ErrNotFound))
		})

		Specify("role checks are exact", func() {
			check := func(path string) map[string]interface{} {
				w := ts.do(http.MethodGet, path, "")
				Expect(w.Code).To(Equal(http.StatusOK))
				return decodeObject(w)
			}

			Expect(check("/users/admin/admin@example.com")).To(Equal(map[string]interface{}{"admin": true}))
			Expect(check("/users/admin/teacher@example.com")).To(Equal(map[string]interface{}{"admin": false}))
			Expect(check("/users/teacher/teacher@example.com")).To(Equal(map[string]interface{}{"teacher": true}))
			Expect(check("/users/teacher/student@example.com")).To(Equal(map[string]interface{}{"teacher": false}))
			Expect(check("/users/student/student@example.com")).To(Equal(map[string]interface{}{"student": true}))
			Expect(check("/users/student/ghost@example.com")).To(Equal(map[string]interface{}{"student": false}))
		})
	})

	Describe("Role transitions", func() {
		var id string

		BeforeEach(func() {
			id = ts.createUser("ustad@example.com", "teacher")
		})

		roleOf := func(id string) interface{} {
			return decodeObject(ts.do(http.MethodGet, "/users/"+id, ""))["role"]
		}

		Specify("makeAdmin then removeAdmin restores teacher", func() {
			w := ts.do(http.MethodPatch, "/users/makeAdmin/"+id, "")
			Expect(w.Code).To(Equal(http.StatusOK))
			ack := decodeObject(w)
			Expect(ack).To(HaveKeyWithValue("acknowledged", true))
			Expect(ack).To(HaveKeyWithValue("matchedCount", 1.0))
			Expect(ack).To(HaveKeyWithValue("modifiedCount", 1.0))
			Expect(roleOf(id)).To(Equal("admin"))

			w = ts.do(http.MethodPatch, "/users/removeAdmin/"+id, "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(roleOf(id)).To(Equal("teacher"))

			keys := []string{}
			for _, a := range ts.recorder.Activities() {
				keys = append(keys, a.RoutingKey())
			}
			Expect(keys).To(Equal([]string{"users.created", "users.role_changed", "users.role_changed"}))
		})

		Specify("removeAdmin sets teacher unconditionally", func() {
			studentID := ts.createUser("talib@example.com", "student")
			w := ts.do(http.MethodPatch, "/users/removeAdmin/"+studentID, "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(roleOf(studentID)).To(Equal("teacher"))
		})

		Specify("unknown id is acknowledged with nothing matched", func() {
			w := ts.do(http.MethodPatch, "/users/makeAdmin/"+primitive.NewObjectID().Hex(), "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeObject(w)).To(HaveKeyWithValue("matchedCount", 0.0))
		})

		Specify("sad path - malformed id", func() {
			w := ts.do(http.MethodPatch, "/users/makeAdmin/zzz", "")
			Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrInvalidID))
		})
	})

	Describe("Profile update", func() {
		var id string

		BeforeEach(func() {
			id = ts.createUser("talib@example.com", "student")
		})

		Specify("only allow-listed fields are written", func() {
			w := ts.do(http.MethodPatch, "/user/student/"+id,
				`{"name":"Talib Hasan","fatherName":"Hasan","section":"B","role":"admin","email":"evil@example.com"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeObject(w)).To(HaveKeyWithValue("modifiedCount", 1.0))

			u := decodeObject(ts.do(http.MethodGet, "/users/"+id, ""))
			Expect(u).To(HaveKeyWithValue("name", "Talib Hasan"))
			Expect(u).To(HaveKeyWithValue("fatherName", "Hasan"))
			Expect(u).To(HaveKeyWithValue("section", "B"))
			Expect(u).To(HaveKeyWithValue("role", "student"))
			Expect(u).To(HaveKeyWithValue("email", "talib@example.com"))
		})

		Specify("sad path - nothing allow-listed", func() {
			w := ts.do(http.MethodPatch, "/user/student/"+id, `{"role":"admin"}`)
			Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrNothingToUpdate))
		})
	})

	Describe("Merge update", func() {
		var id string

		BeforeEach(func() {
			id = ts.createUser("merge@example.com", "teacher")
		})

		Specify("sets every submitted field", func() {
			w := ts.do(http.MethodPatch, "/userUpdate/"+id, `{"designation":"Head Maulana","role":"admin"}`)
			Expect(w.Code).To(Equal(http.StatusOK))

			u := decodeObject(ts.do(http.MethodGet, "/users/"+id, ""))
			Expect(u).To(HaveKeyWithValue("designation", "Head Maulana"))
			Expect(u).To(HaveKeyWithValue("role", "admin"))
		})

		Specify("sad path - invalid role is rejected", func() {
			w := ts.do(http.MethodPatch, "/userUpdate/"+id, `{"role":"superuser"}`)
			Expect(w).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrInvalidRole))
			Expect(decodeObject(ts.do(http.MethodGet, "/users/"+id, ""))).To(HaveKeyWithValue("role", "teacher"))
		})

		Specify("sad path - email taken by someone else", func() {
			ts.createUser("taken@example.com", "student")
			w := ts.do(http.MethodPatch, "/userUpdate/"+id, `{"email":"taken@example.com"}`)
			Expect(w).To(RespondWithBackendError(http.StatusConflict, errs.ErrAlreadyExists))
		})
	})

	Describe("Delete user", func() {
		Specify("removes exactly that user", func() {
			keep := ts.createUser("keep@example.com", "student")
			gone := ts.createUser("gone@example.com", "student")

			w := ts.do(http.MethodDelete, "/users/"+gone, "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeObject(w)).To(Equal(map[string]interface{}{"acknowledged": true, "deletedCount": 1.0}))

			Expect(ids(decodeList(ts.do(http.MethodGet, "/users", "")))).To(ConsistOf(keep))

			w = ts.do(http.MethodDelete, "/users/"+gone, "")
			Expect(decodeObject(w)).To(HaveKeyWithValue("deletedCount", 0.0))
		})

		Specify("sad path - malformed id", func() {
			Expect(ts.do(http.MethodDelete, "/users/admins", "")).To(RespondWithBackendError(http.StatusBadRequest, errs.ErrInvalidID))
		})
	})

	Describe("Storage failures", func() {
		Specify("surface as a generic database error", func() {
			ts = newTestServerWithUsers(brokenCollection{})
			for _, w := range []*httptest.ResponseRecorder{
				ts.do(http.MethodGet, "/users", ""),
				ts.do(http.MethodGet, "/users/teachers", ""),
				ts.do(http.MethodGet, "/users/admin/a@example.com", ""),
				ts.do(http.MethodPost, "/users", `{"email":"a@example.com"}`),
				ts.do(http.MethodDelete, "/users/"+primitive.NewObjectID().Hex(), ""),
			} {
				Expect(w).To(RespondWithBackendError(http.StatusInternalServerError, errs.ErrDatabase))
				Expect(w.Body.String()).NotTo(ContainSubstring(errBroken.Error()))
			}
		})

		Specify("slow storage is cut off by the request timeout", func() {
			ts = newTestServerWithUsers(brokenCollection{slow: true})
			Expect(ts.do(http.MethodGet, "/users", "")).To(RespondWithBackendError(http.StatusInternalServerError, errs.ErrDatabase))
		})

		Specify("wrapped timeouts are logged as abandoned calls", func() {
			core, logs := observer.New(zap.DebugLevel)
			previous := log.Logger
			log.Logger = zap.New(core)
			defer func() { log.Logger = previous }()

			ts = newTestServerWithUsers(brokenCollection{slow: true, wrap: true})
			Expect(ts.do(http.MethodGet, "/users", "")).To(RespondWithBackendError(http.StatusInternalServerError, errs.ErrDatabase))

			abandoned := logs.FilterMessage("database call abandoned").All()
			Expect(abandoned).To(HaveLen(1))
			Expect(abandoned[0].Level).To(Equal(zapcore.WarnLevel))
			Expect(logs.FilterMessage("database error").Len()).To(BeZero())
		})

		Specify("a panic becomes a JSON 500", func() {
			ts = newTestServerWithUsers(brokenCollection{panics: true})
			w := ts.do(http.MethodGet, "/users", "")
			Expect(w).To(RespondWithBackendError(http.StatusInternalServerError, errs.ErrInternal))
			Expect(w.Header().Get("Content-Type")).To(HavePrefix("application/json"))
		})
	})
})
